package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalyzeImageSendsInlineData(t *testing.T) {
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "key-1" {
			t.Errorf("expected api key header, got %q", got)
		}
		var payload struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				ResponseMIMEType string `json:"response_mime_type"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Errorf("expected JSON response mime type, got %q", payload.GenerationConfig.ResponseMIMEType)
		}
		parts := payload.Contents[0].Parts
		if len(parts) != 2 || parts[0].Text == "" || parts[1].InlineData == nil {
			t.Fatalf("unexpected parts: %+v", parts)
		}
		if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString(image) {
			t.Error("inline data does not match image bytes")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"is_certificate\":true}"}]}}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key-1")
	text, err := client.AnalyzeImage(context.Background(), "gemini-1.5-flash", "describe", "image/png", image)
	if err != nil {
		t.Fatalf("AnalyzeImage returned error: %v", err)
	}
	if text != `{"is_certificate":true}` {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestAnalyzeImageNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key-1")
	if _, err := client.AnalyzeImage(context.Background(), "m", "p", "image/png", []byte{1}); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestAnalyzeImageSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid argument"}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key-1")
	_, err := client.AnalyzeImage(context.Background(), "m", "p", "image/png", []byte{1})
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid argument" {
		t.Fatalf("expected 400 APIError with message, got %v", err)
	}
}
