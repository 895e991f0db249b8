package share

import (
	"context"
	"io"

	"github.com/klauspost/compress/zip"
)

// Archive streams a batch as a zip with one entry per record.
type Archive struct {
	ShareID string
	Records []FileRecord

	store ObjectStore
	ctx   context.Context
}

// WithContext returns a copy of a bound to ctx for object reads.
func (a *Archive) WithContext(ctx context.Context) *Archive {
	c := *a
	c.ctx = ctx
	return &c
}

// WriteTo writes the zip to w and returns the number of bytes written to
// w. Objects are read one at a time. A read failure stops the stream;
// whatever has been written to w stays written.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, rec := range a.Records {
		if err := a.writeEntry(ctx, zw, rec); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (a *Archive) writeEntry(ctx context.Context, zw *zip.Writer, rec FileRecord) error {
	body, _, err := a.store.Get(ctx, rec.ObjectKey)
	if err != nil {
		return readErr("get", rec.ObjectKey, err)
	}
	defer body.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     rec.FileName,
		Method:   zip.Deflate,
		Modified: rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(entry, body); err != nil {
		return readErr("get", rec.ObjectKey, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
