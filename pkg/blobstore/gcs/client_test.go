package gcs

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	return &Client{
		bucket:     "bucket",
		publicHost: "https://storage.googleapis.com",
		tokenSource: &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
			return "token", time.Now().Add(time.Hour), nil
		}},
		httpClient: &http.Client{Transport: rt},
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
	}
}

func TestPutUploadsMultipart(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(req *http.Request) *http.Response {
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", req.Method)
		}
		if !strings.Contains(req.URL.String(), "uploadType=multipart") {
			t.Fatalf("unexpected url %s", req.URL)
		}
		if req.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("unexpected auth %s", req.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(body), `"contentHash":"abc123"`) {
			t.Fatalf("metadata missing from body: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"name":"stores/1/photo.jpg","size":"4","contentType":"image/jpeg","metadata":{"contentHash":"abc123"}}`)
	})

	obj, err := client.Put(context.Background(), "stores/1/photo.jpg", "image/jpeg",
		map[string]string{"contentHash": "abc123"}, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Put error = %v", err)
	}
	if obj.Path != "stores/1/photo.jpg" || obj.Size != 4 {
		t.Errorf("obj = %+v", obj)
	}
	if obj.Metadata["contentHash"] != "abc123" {
		t.Errorf("metadata = %v", obj.Metadata)
	}
}

func TestPutUploadFailure(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusBadGateway, `{"error":"bad"}`)
	})

	_, err := client.Put(context.Background(), "p", "image/jpeg", nil, strings.NewReader("x"))
	if !apperrors.Is(err, apperrors.CodeUploadFailed) {
		t.Fatalf("Put error = %v, want upload failed", err)
	}
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(req *http.Request) *http.Response {
		if req.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", req.Method)
		}
		return jsonResponse(http.StatusNotFound, "")
	})

	if err := client.Delete(context.Background(), "stores/1/photo.jpg"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
}

func TestMetadataExists(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(req *http.Request) *http.Response {
		if !strings.Contains(req.URL.RawQuery, "prefix=stores%2F1%2F") {
			t.Fatalf("unexpected query %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, `{"items":[
			{"name":"stores/1/a.jpg","size":"10","metadata":{"contentHash":"aaa"}},
			{"name":"stores/1/b.jpg","size":"11","metadata":{"contentHash":"bbb"}}
		]}`)
	})

	found, err := client.MetadataExists(context.Background(), "stores/1/", "contentHash", "bbb")
	if err != nil {
		t.Fatalf("MetadataExists error = %v", err)
	}
	if !found {
		t.Error("MetadataExists = false, want true")
	}

	missing, err := client.MetadataExists(context.Background(), "stores/1/", "contentHash", "zzz")
	if err != nil {
		t.Fatalf("MetadataExists error = %v", err)
	}
	if missing {
		t.Error("MetadataExists = true for unknown hash")
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	client := testClient(t, nil)
	got := client.URL("stores/1/photo.jpg")
	want := "https://storage.googleapis.com/bucket/stores/1/photo.jpg"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}
