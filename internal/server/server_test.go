package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/archive"
	"github.com/orcfax/protocol-server/internal/envelope"
	"github.com/orcfax/protocol-server/internal/feed"
	"github.com/orcfax/protocol-server/internal/metrics"
	"github.com/orcfax/protocol-server/internal/testutil/vectors"
	"github.com/orcfax/protocol-server/internal/verify"
)

type stubSource struct {
	payloads map[string]*core.FeedPayload
	debug    map[string]*core.DebugPayload
}

func (s *stubSource) Latest(file string) (*core.FeedPayload, bool) {
	p, ok := s.payloads[file]
	return p, ok
}

func (s *stubSource) LatestDebug(file string) (*core.DebugPayload, bool) {
	p, ok := s.debug[file]
	return p, ok
}

func newSource(t *testing.T) *stubSource {
	t.Helper()
	b := envelope.NewBuilder(vectors.Key(t), envelope.HexJSON)
	sample := feed.Sample{Current: 3, Average: 1.5, Time: time.Unix(1760832000, 0)}

	value := feed.ValueFeed("custom/FEED/abc123")
	epoch := feed.EpochFeed(feed.DefaultEpochID)

	vp, err := b.Build(value.Data(sample), value.Description)
	require.NoError(t, err)
	ep, err := b.Build(epoch.Data(sample), epoch.Description)
	require.NoError(t, err)
	dp, err := b.BuildDebug(value.Data(sample), value.Description)
	require.NoError(t, err)

	return &stubSource{
		payloads: map[string]*core.FeedPayload{feed.ValueFile: vp, feed.EpochFile: ep},
		debug:    map[string]*core.DebugPayload{feed.ValueFile: dp},
	}
}

func newServer(t *testing.T, src Source, keys KeySource, opts ...Option) *Server {
	t.Helper()
	s, err := New(src, keys, opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func assertIdentity(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "custom/FEED/abc123", h.Get(HeaderFeedID))
	assert.Equal(t, "node-1", h.Get(HeaderNodeID))
	assert.Equal(t, "hello Orcfax!", h.Get(HeaderOrcfax))
	assert.Contains(t, h, http.CanonicalHeaderKey(HeaderEmptyString))
}

func TestFeedEndpoints(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	s := newServer(t, src, vectors.Key(t), WithIdentity("custom/FEED/abc123", "node-1"))

	t.Run("data", func(t *testing.T) {
		t.Parallel()
		resp := do(t, s.Handler(), http.MethodGet, "/data", nil)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assertIdentity(t, resp.Header)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var got core.FeedPayload
		require.NoError(t, json.Unmarshal(body, &got))
		res, err := verify.Raw(vectors.PublicKeyHex, got.Signature, got.Payload)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.JSONEq(t, string(src.payloads[feed.ValueFile].Data), string(got.Data))
	})

	t.Run("data_plural", func(t *testing.T) {
		t.Parallel()
		resp := do(t, s.Handler(), http.MethodGet, "/data_plural", nil)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assertIdentity(t, resp.Header)
		assert.Contains(t, string(body), feed.DefaultEpochID)
	})

	t.Run("data_debug", func(t *testing.T) {
		t.Parallel()
		resp := do(t, s.Handler(), http.MethodGet, "/data_debug", nil)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assertIdentity(t, resp.Header)

		var got map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		for _, key := range []string{"data", "description", "data (json)", "signature (json)", "payload (hex)", "signature (hex)", "pkey_cbor", "pkey_ed25519"} {
			assert.Contains(t, got, key)
		}
	})

	t.Run("head", func(t *testing.T) {
		t.Parallel()
		resp := do(t, s.Handler(), http.MethodHead, "/data", nil)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body)
		assertIdentity(t, resp.Header)
	})

	t.Run("etag", func(t *testing.T) {
		t.Parallel()
		first := do(t, s.Handler(), http.MethodGet, "/data", nil)
		readBody(t, first)
		etag := first.Header.Get("ETag")
		require.NotEmpty(t, etag)
		assert.Contains(t, etag, "sha256:")

		second := do(t, s.Handler(), http.MethodGet, "/data", http.Header{"If-None-Match": {etag}})
		assert.Empty(t, readBody(t, second))
		assert.Equal(t, http.StatusNotModified, second.StatusCode)
	})
}

func TestFeedEndpoints_NoDataYet(t *testing.T) {
	t.Parallel()

	s := newServer(t, &stubSource{}, vectors.Key(t), WithIdentity("custom/FEED/abc123", "node-1"))
	for _, path := range []string{"/data", "/data_plural", "/data_debug"} {
		resp := do(t, s.Handler(), http.MethodGet, path, nil)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Contains(t, string(body), "no data published yet")
		assertIdentity(t, resp.Header)
	}
}

func TestKeyEndpoints(t *testing.T) {
	t.Parallel()

	s := newServer(t, &stubSource{}, vectors.Key(t), WithIdentity("custom/FEED/abc123", "node-1"))

	resp := do(t, s.Handler(), http.MethodGet, "/pkey", nil)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertIdentity(t, resp.Header)
	assert.JSONEq(t, `{"ed25519":"`+vectors.PublicKeyHex+`","cbor":"`+vectors.PublicKeyCBORHex+`"}`, string(body))

	resp = do(t, s.Handler(), http.MethodGet, "/pem", nil)
	body = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertIdentity(t, resp.Header)
	var pemText string
	require.NoError(t, json.Unmarshal(body, &pemText))
	pub, err := cryptoutils.UnmarshalPEMToPublicKey([]byte(pemText))
	require.NoError(t, err)
	assert.NotNil(t, pub)
}

func TestVerifyEndpoints(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	s := newServer(t, &stubSource{}, vectors.Key(t), WithMetrics(m))

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{
			name:   "raw defaults",
			target: "/verify",
			status: http.StatusOK,
			body: `{"valid":true,"signing key":"` + vectors.PublicKeyHex + `","ed25519":"` + vectors.PublicKeyHex +
				`","payload":"{\"current\": 1, \"average\": 10, \"time\": 12345}"}`,
		},
		{
			name:   "cbor defaults",
			target: "/verify_cbor",
			status: http.StatusOK,
			body: `{"valid":true,"signing key":"` + vectors.PublicKeyCBORHex + `","ed25519":"` + vectors.PublicKeyHex +
				`","payload":"{\"current\": 1, \"average\": 10, \"time\": 12345}"}`,
		},
		{
			name:   "signature for other payload",
			target: "/verify?signature=" + vectors.CompactSignatureHex,
			status: http.StatusOK,
			body:   `{"valid":false}`,
		},
		{
			name:   "compact vector",
			target: "/verify?signature=" + vectors.CompactSignatureHex + "&data=" + vectors.CompactPayloadHex,
			status: http.StatusOK,
			body: `{"valid":true,"signing key":"` + vectors.PublicKeyHex + `","ed25519":"` + vectors.PublicKeyHex +
				`","payload":"{\"current\":1,\"average\":10,\"time\":12345}"}`,
		},
		{
			name:   "raw key to cbor endpoint",
			target: "/verify_cbor?pkey=" + vectors.PublicKeyHex,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad hex key",
			target: "/verify?pkey=zz",
			status: http.StatusBadRequest,
		},
		{
			name:   "empty signature",
			target: "/verify?signature=",
			status: http.StatusOK,
			body:   `{"valid":false}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, s.Handler(), http.MethodGet, tt.target, nil)
			body := readBody(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, string(body))
			} else {
				var e map[string]string
				require.NoError(t, json.Unmarshal(body, &e))
				assert.Contains(t, e["error"], "malformed input")
			}
		})
	}

	resp := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	body := string(readBody(t, resp))
	assert.Contains(t, body, `express_verify_requests_total{outcome="valid"} 3`)
	assert.Contains(t, body, `express_verify_requests_total{outcome="invalid"} 2`)
	assert.Contains(t, body, `express_verify_requests_total{outcome="malformed"} 2`)
}

func TestGzip(t *testing.T) {
	t.Parallel()

	s := newServer(t, &stubSource{}, vectors.Key(t), WithMetrics(metrics.New()))

	resp := do(t, s.Handler(), http.MethodGet, "/metrics", http.Header{"Accept-Encoding": {"gzip"}})
	readBody(t, resp)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	resp = do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	readBody(t, resp)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestGzip_ETagDiffersByEncoding(t *testing.T) {
	t.Parallel()

	// Large enough to cross the compression threshold.
	b := envelope.NewBuilder(vectors.Key(t), envelope.HexJSON)
	value := feed.ValueFeed("custom/FEED/abc123")
	sample := feed.Sample{Current: 3, Average: 1.5, Time: time.Unix(1760832000, 0)}
	p, err := b.Build(value.Data(sample), strings.Repeat("long description ", 128))
	require.NoError(t, err)
	src := &stubSource{payloads: map[string]*core.FeedPayload{feed.ValueFile: p}}
	s := newServer(t, src, vectors.Key(t))

	plain := do(t, s.Handler(), http.MethodGet, "/data", nil)
	readBody(t, plain)
	require.Empty(t, plain.Header.Get("Content-Encoding"))

	gzipped := do(t, s.Handler(), http.MethodGet, "/data", http.Header{"Accept-Encoding": {"gzip"}})
	readBody(t, gzipped)
	require.Equal(t, "gzip", gzipped.Header.Get("Content-Encoding"))

	plainTag := plain.Header.Get("ETag")
	gzipTag := gzipped.Header.Get("ETag")
	assert.NotEqual(t, plainTag, gzipTag)
	assert.Equal(t, strings.TrimSuffix(plainTag, `"`)+GzipETagSuffix+`"`, gzipTag)

	for _, tag := range []string{plainTag, gzipTag} {
		resp := do(t, s.Handler(), http.MethodGet, "/data", http.Header{
			"Accept-Encoding": {"gzip"},
			"If-None-Match":   {tag},
		})
		readBody(t, resp)
		assert.Equal(t, http.StatusNotModified, resp.StatusCode, tag)
	}
}

func TestStaticAndArchive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	static := filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "keys.json"), []byte(`{"ed25519":"aa"}`), 0o644))

	aw, err := archive.NewWriter(filepath.Join(root, "archive"), vectors.Key(t))
	require.NoError(t, err)
	src := newSource(t)
	path, err := aw.Append(src.payloads[feed.ValueFile], feed.ValueFile)
	require.NoError(t, err)

	s := newServer(t, src, vectors.Key(t), WithStaticDir(static), WithArchive(aw.FS()))

	resp := do(t, s.Handler(), http.MethodGet, "/keys.json", nil)
	assert.Equal(t, `{"ed25519":"aa"}`, string(readBody(t, resp)))

	resp = do(t, s.Handler(), http.MethodGet, "/archive/"+archive.IndexPage, nil)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), filepath.Base(path))

	resp = do(t, s.Handler(), http.MethodGet, "/archive/"+path, nil)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), vectors.PublicKeyHex)

	resp = do(t, s.Handler(), http.MethodGet, "/missing.json", nil)
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	s := newServer(t, &stubSource{}, vectors.Key(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/pkey")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	t.Parallel()

	s := newServer(t, &stubSource{}, vectors.Key(t))
	err := s.ListenAndServe(context.Background(), "256.0.0.1:99999")
	require.Error(t, err)
}
