package erctest

import "io"

// Tap returns an io.ReadWriteCloser that copies all traffic on rwc to w,
// reads prefixed with inPrefix and writes with outPrefix. Wrap a connection
// with it in a DialFn to watch the wire while debugging a failing test:
//
//	client.DialFn = func() (io.ReadWriteCloser, error) {
//		return erctest.Tap(os.Stderr, server, "-> ", "<- "), nil
//	}
//
// Not safe for concurrent use of w by other writers; interleaving can occur.
func Tap(w io.Writer, rwc io.ReadWriteCloser, outPrefix, inPrefix string) io.ReadWriteCloser {
	return &tapConn{
		ReadWriteCloser: rwc,
		r:               io.TeeReader(rwc, &linePrefixer{w: w, prefix: inPrefix}),
		w:               io.MultiWriter(rwc, &linePrefixer{w: w, prefix: outPrefix}),
	}
}

type tapConn struct {
	io.ReadWriteCloser
	r io.Reader
	w io.Writer
}

func (t *tapConn) Read(p []byte) (int, error) {
	return t.r.Read(p)
}

func (t *tapConn) Write(p []byte) (int, error) {
	return t.w.Write(p)
}

type linePrefixer struct {
	w      io.Writer
	prefix string
}

func (lp *linePrefixer) Write(p []byte) (n int, err error) {
	n, err = lp.w.Write(append([]byte(lp.prefix), p...))
	// report at most len(p) so MultiWriter does not see a short/long write
	n -= len(lp.prefix)
	if n < 0 {
		n = 0
	}
	if n > len(p) {
		n = len(p)
	}
	return n, err
}
