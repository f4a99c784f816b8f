package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"time"
)

const (
	// IndexSystemLogs receives structured application logs
	IndexSystemLogs = "paybridge-system-logs"
	// IndexPaymentEvents receives charge/verify/webhook audit records
	IndexPaymentEvents = "paybridge-payment-events"

	indexTimeout = 5 * time.Second
	bufferSize   = 256
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// Logger ships documents to OpenSearch asynchronously. Indexing is best
// effort: a full buffer or a failed request drops the document with a
// console note rather than blocking the payment path.
type Logger struct {
	client *Client
	docs   chan indexedDoc
	done   chan struct{}
}

type indexedDoc struct {
	index string
	body  []byte
}

// PaymentEvent is one audit record about a payment operation
type PaymentEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Provider  string         `json:"provider"`
	Operation string         `json:"operation"`
	Reference string         `json:"reference,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewLogger creates an async OpenSearch logger and starts its writer
func NewLogger(client *Client) *Logger {
	l := &Logger{
		client: client,
		docs:   make(chan indexedDoc, bufferSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	for doc := range l.docs {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		if err := l.client.Index(ctx, doc.index, doc.body); err != nil {
			log.Printf("opensearch: failed to index into %s: %v", doc.index, err)
		}
		cancel()
	}
	close(l.done)
}

// Close stops the writer after draining queued documents
func (l *Logger) Close() {
	close(l.docs)
	<-l.done
}

// IndexSystemLog queues a structured log document
func (l *Logger) IndexSystemLog(doc any) {
	l.enqueue(IndexSystemLogs, doc)
}

// IndexPaymentEvent queues a payment audit record
func (l *Logger) IndexPaymentEvent(event PaymentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.enqueue(IndexPaymentEvents, event)
}

func (l *Logger) enqueue(index string, doc any) {
	body, err := json.Marshal(doc)
	if err != nil {
		log.Printf("opensearch: failed to marshal document for %s: %v", index, err)
		return
	}
	select {
	case l.docs <- indexedDoc{index: index, body: body}:
	default:
		log.Printf("opensearch: buffer full, dropping document for %s", index)
	}
}
