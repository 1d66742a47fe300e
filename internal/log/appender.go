package log

import "io"

// MultiWriter fans log output out to every appender; a failing appender does
// not stop the others.
type MultiWriter struct {
	writers []io.Writer
	owned   []io.Closer // appenders opened by the MultiWriter itself
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

// Add appends a writer owned by the caller. Close leaves it open.
func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) own(w io.WriteCloser) *MultiWriter {
	m.writers = append(m.writers, w)
	m.owned = append(m.owned, w)
	return m
}

// Close closes the appenders the MultiWriter opened (rotating files).
func (m *MultiWriter) Close() error {
	var err error
	for _, c := range m.owned {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	return err
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}
