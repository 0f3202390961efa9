package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// EncodeError renders the JSON error envelope shared by every endpoint.
func EncodeError(status int, kind, message string) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("kind")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(EncodeError(status, kind, message))
}
