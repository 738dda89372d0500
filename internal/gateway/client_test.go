package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lu-zhengda/knot/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestAPIErrorDecodesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"x"}`))
	})

	_, err := c.Move(context.Background(), domain.MoveItem{FolderPath: "/a", ArchivePath: "/b"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Detail != "x" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Error("409 should match ErrConflict")
	}
}

func TestAPIErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "boom" {
		t.Fatalf("err = %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Health(context.Background())
	if !IsTransport(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestListMailQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mail/list" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "20" || r.URL.Query().Get("days") != "3" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []domain.MailItem{{ID: "7", Subject: "hi", AttachmentCount: 1, HasAttachments: true}},
		})
	})

	items, err := c.ListMail(context.Background(), 20, 3)
	if err != nil {
		t.Fatalf("ListMail: %v", err)
	}
	if len(items) != 1 || items[0].ID != "7" || !items[0].HasAttachments {
		t.Errorf("items = %+v", items)
	}
}

func TestScanSendsParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Query().Get("scan_path") != "/work" || r.URL.Query().Get("recursive") != "true" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success":true,"scan_path":"/work","count":0}`))
	})
	folders, err := c.Scan(context.Background(), "/work", true)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if folders == nil || len(folders) != 0 {
		t.Errorf("folders = %#v", folders)
	}
}

func TestBatchMoveRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []domain.MoveItem `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		res := domain.BatchResult{}
		for _, it := range req.Items {
			res.Add(domain.MoveResult{Source: it.FolderPath, Success: true, Message: "归档成功"})
		}
		json.NewEncoder(w).Encode(res)
	})

	res, err := c.BatchMove(context.Background(), []domain.MoveItem{{FolderPath: "/a", ArchivePath: "/x"}, {FolderPath: "/b", ArchivePath: "/x"}})
	if err != nil {
		t.Fatalf("BatchMove: %v", err)
	}
	if res.Total != 2 || res.SuccessCount != 2 || res.Results[1].Source != "/b" {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateFolderWithAttachments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/folder/create-with-attachments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req domain.FolderRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Hash != "abc" || req.Source != domain.SourceMail {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"success":true,"path":"/d/f","content_path":"/d/f","work_record":"/d/f/工作记录.md","attachments_downloaded":["a.pdf"]}`))
	})

	res, err := c.CreateFolderWithAttachments(context.Background(), domain.FolderRequest{Hash: "abc", Source: domain.SourceMail})
	if err != nil {
		t.Fatalf("CreateFolderWithAttachments: %v", err)
	}
	if res.Path != "/d/f" || len(res.AttachmentsDownloaded) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestCheckHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"found":true,"matches":[{"name":"f","path":"/w/f","status":"working"}]}`))
	})
	res, err := c.CheckHash(context.Background(), domain.CheckHashRequest{Hash: "h"})
	if err != nil {
		t.Fatalf("CheckHash: %v", err)
	}
	if !res.Found || res.Matches[0].Status != domain.StatusWorking {
		t.Errorf("result = %+v", res)
	}
}

func TestContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Health(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
