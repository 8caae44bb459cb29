package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/opencontainers/go-digest"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/metrics"
	"github.com/orcfax/protocol-server/internal/verify"
)

// Default verification inputs, a known-good example for each key encoding.
const (
	ExamplePublicKey     = "5a002828b53dd51c3081eb419494a4c47a93a220253cdca1cc39856b6ec5a2c4"
	ExamplePublicKeyCBOR = "5820" + ExamplePublicKey
	ExampleSignature     = "49e9c8656eb5ea0db5e59039a9004199d36193dd7f01406b6af4537d0df6ceac0b6d28c3d5eeeaa2e9a99dee2c674b5be8ac6dd11c9513b125d55f4a3670ad0b"
	ExamplePayload       = "7b2263757272656e74223a20312c202261766572616765223a2031302c202274696d65223a2031323334357d"
)

// Identity headers attached to every read response.
const (
	HeaderFeedID      = "X-FEED-ID"
	HeaderNodeID      = "X-NODE-ID"
	HeaderOrcfax      = "X-ORCFAX"
	HeaderEmptyString = "X-empty-string"

	greeting = "hello Orcfax!"
)

var errNoData = errors.New("no data published yet")

func (s *Server) setIdentity(h http.Header) {
	h.Set(HeaderFeedID, s.feedID)
	h.Set(HeaderEmptyString, "")
	h.Set(HeaderNodeID, s.nodeID)
	h.Set(HeaderOrcfax, greeting)
}

func (s *Server) handleFeed(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setIdentity(w.Header())
		payload, ok := s.feeds.Latest(file)
		if !ok {
			writeError(w, r, http.StatusServiceUnavailable, errNoData)
			return
		}
		writeCacheable(w, r, payload)
	}
}

func (s *Server) handleDebug(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setIdentity(w.Header())
		payload, ok := s.feeds.LatestDebug(file)
		if !ok {
			writeError(w, r, http.StatusServiceUnavailable, errNoData)
			return
		}
		writeCacheable(w, r, payload)
	}
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	s.setIdentity(w.Header())
	writeCacheable(w, r, s.keys.ExportPublic())
}

// handlePEM responds with the PEM text as a JSON string.
func (s *Server) handlePEM(w http.ResponseWriter, r *http.Request) {
	s.setIdentity(w.Header())
	pem, err := s.keys.ExportPublicPEM()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, http.StatusOK, string(pem))
}

func (s *Server) handleVerify(enc verify.KeyEncoding, defaultKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := verify.Signature(enc,
			queryOr(q, "pkey", defaultKey),
			queryOr(q, "signature", ExampleSignature),
			queryOr(q, "data", ExamplePayload),
		)
		if err != nil {
			s.observeVerify(metrics.OutcomeMalformed)
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrMalformedInput) {
				status = http.StatusBadRequest
			}
			writeError(w, r, status, err)
			return
		}
		if res.Valid {
			s.observeVerify(metrics.OutcomeValid)
		} else {
			s.observeVerify(metrics.OutcomeInvalid)
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func (s *Server) observeVerify(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(outcome)
	}
}

// queryOr returns the named parameter, or def when it is absent.
// A present but empty parameter is returned as empty.
func queryOr(q url.Values, name, def string) string {
	if !q.Has(name) {
		return def
	}
	return q.Get(name)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, status, body)
}

// writeBody sets the JSON content type and status, and omits the body on HEAD.
func writeBody(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// writeCacheable writes v with a content-addressed ETag and answers
// conditional requests with 304. The gzip-suffixed ETag matches too, since
// the gzip wrapper only rewrites it on the way out.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	body, err := encode(v)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	dgst := digest.FromBytes(body).String()
	etag := `"` + dgst + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match == etag || match == `"`+dgst+GzipETagSuffix+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeBody(w, r, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
