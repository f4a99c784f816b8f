package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidateConfigFields validates driver configuration against the
// driver's declared field table
func ValidateConfigFields(providerName string, config map[string]string, requiredFields []ConfigField) error {
	for _, field := range requiredFields {
		value, exists := config[field.Key]
		if !exists || strings.TrimSpace(value) == "" {
			if field.Required {
				return fmt.Errorf("%s: required field '%s' is missing", providerName, field.Key)
			}
			continue
		}

		if field.Type == "boolean" && value != "true" && value != "false" {
			return fmt.Errorf("%s: field '%s' must be 'true' or 'false'", providerName, field.Key)
		}

		if field.Pattern != "" {
			matched, err := regexp.MatchString(field.Pattern, value)
			if err != nil {
				return fmt.Errorf("%s: invalid pattern for field '%s': %v", providerName, field.Key, err)
			}
			if !matched {
				return fmt.Errorf("%s: field '%s' does not match required pattern", providerName, field.Key)
			}
		}

		if field.MinLength > 0 && len(value) < field.MinLength {
			return fmt.Errorf("%s: field '%s' must be at least %d characters", providerName, field.Key, field.MinLength)
		}
		if field.MaxLength > 0 && len(value) > field.MaxLength {
			return fmt.Errorf("%s: field '%s' must not exceed %d characters", providerName, field.Key, field.MaxLength)
		}
	}
	return nil
}
