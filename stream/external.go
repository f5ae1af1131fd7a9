package stream

import "github.com/arloliu/czi/errs"

// ErrorCodeUnspecified is the error code for "an unspecified error occurred".
const ErrorCodeUnspecified = 1

// ErrorInfo is how an external stream back-end reports a failure: an error
// code and a message. A nil *ErrorInfo means success.
type ErrorInfo struct {
	Code    int
	Message string
}

// Err converts the info into an error matching errs.ErrStream, or nil.
func (e *ErrorInfo) Err() error {
	if e == nil {
		return nil
	}

	return &errs.StreamError{Code: e.Code, Message: e.Message}
}

// ExternalReadFunc reads from an external back-end.
type ExternalReadFunc func(offset int64, p []byte) (int, *ErrorInfo)

// ExternalWriteFunc writes to an external back-end.
type ExternalWriteFunc func(offset int64, p []byte) (int, *ErrorInfo)

type externalInput struct {
	read ExternalReadFunc
}

// FromExternalInput adapts an external read function to an InputStream. Short
// reads are zero-filled like every other InputStream.
func FromExternalInput(read ExternalReadFunc) InputStream {
	return &externalInput{read: read}
}

func (s *externalInput) Read(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	n, info := s.read(offset, p)
	if info != nil {
		return n, info.Err()
	}
	n = min(max(n, 0), len(p))
	clear(p[n:])

	return n, nil
}

type externalOutput struct {
	write ExternalWriteFunc
}

// FromExternalOutput adapts an external write function to an OutputStream.
func FromExternalOutput(write ExternalWriteFunc) OutputStream {
	return &externalOutput{write: write}
}

func (s *externalOutput) Write(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	n, info := s.write(offset, p)

	return n, info.Err()
}
