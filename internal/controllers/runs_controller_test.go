package controllers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/models"
)

func storedDefinition(name string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		Name:       name,
		Definition: validDefinitionJSON,
	}
}

func TestCreateRunStartsPendingRun(t *testing.T) {
	defRepo := &MockDefinitionRepo{
		FindByNameFunc: func(name string) (*domain.WorkflowDefinition, error) {
			return storedDefinition(name), nil
		},
	}
	var saved *domain.WorkflowRun
	runRepo := &MockRunRepo{
		SaveFunc: func(run *domain.WorkflowRun) (int64, error) {
			saved = run
			return 9, nil
		},
	}
	mux := newTestMux(defRepo, runRepo, &MockRunStepRepo{})

	body := `{"definitionName": "blog-post", "variables": {"topic": "go"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.CreateRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 9 || resp.RunKey == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if saved == nil || saved.Status != domain.RunStatusNew {
		t.Fatalf("expected a NEW run to be saved, got %+v", saved)
	}
	if !saved.Variables.Valid || !strings.Contains(saved.Variables.String, "topic") {
		t.Errorf("expected variables to be persisted, got %+v", saved.Variables)
	}
}

func TestCreateRunUnknownDefinition(t *testing.T) {
	mux := newTestMux(&MockDefinitionRepo{}, &MockRunRepo{}, &MockRunStepRepo{})

	body := `{"definitionName": "missing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateRunRefusesInvalidStoredDefinition(t *testing.T) {
	defRepo := &MockDefinitionRepo{
		FindByNameFunc: func(name string) (*domain.WorkflowDefinition, error) {
			return &domain.WorkflowDefinition{Name: name, Definition: cyclicDefinitionJSON}, nil
		},
	}
	saveCalled := false
	runRepo := &MockRunRepo{
		SaveFunc: func(run *domain.WorkflowRun) (int64, error) {
			saveCalled = true
			return 1, nil
		},
	}
	mux := newTestMux(defRepo, runRepo, &MockRunStepRepo{})

	body := `{"definitionName": "broken"}`
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if saveCalled {
		t.Error("no run may be created for an invalid stored definition")
	}
}

func TestCreateRunMissingDefinitionName(t *testing.T) {
	mux := newTestMux(&MockDefinitionRepo{}, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetRunByKey(t *testing.T) {
	runRepo := &MockRunRepo{
		FindByRunKeyFunc: func(key string) (*domain.WorkflowRun, error) {
			if key != "key-1" {
				return nil, nil
			}
			return &domain.WorkflowRun{
				ID:             3,
				RunKey:         "key-1",
				DefinitionName: "blog-post",
				Status:         domain.RunStatusFinished,
				CurrentNode:    sql.NullString{Valid: true, String: "write"},
				Variables:      sql.NullString{Valid: true, String: `{"topic": "go"}`},
			}, nil
		},
	}
	mux := newTestMux(&MockDefinitionRepo{}, runRepo, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/key-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.RunApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != domain.RunStatusFinished || resp.CurrentNode != "write" || resp.Variables["topic"] != "go" {
		t.Errorf("unexpected run response %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown key, got %d", rec.Code)
	}
}

func TestListRunsByDefinition(t *testing.T) {
	runRepo := &MockRunRepo{
		FindAllByDefinitionFunc: func(name string, limit int) (*[]domain.WorkflowRun, error) {
			if limit != 2 {
				t.Errorf("expected limit 2, got %d", limit)
			}
			return &[]domain.WorkflowRun{
				{ID: 2, RunKey: "k2", DefinitionName: name},
				{ID: 1, RunKey: "k1", DefinitionName: name},
			}, nil
		},
	}
	mux := newTestMux(&MockDefinitionRepo{}, runRepo, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/definitions/blog-post/runs?limit=2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []models.RunApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 || resp[0].RunKey != "k2" {
		t.Errorf("unexpected runs %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/definitions/blog-post/runs?limit=zero", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestGetRunSteps(t *testing.T) {
	runRepo := &MockRunRepo{
		FindByRunKeyFunc: func(key string) (*domain.WorkflowRun, error) {
			return &domain.WorkflowRun{ID: 3, RunKey: key}, nil
		},
	}
	stepRepo := &MockRunStepRepo{
		FindAllByRunIDFunc: func(runID int64) (*[]domain.RunStep, error) {
			return &[]domain.RunStep{
				{ID: 1, RunID: runID, Type: "SCHEDULED", DateTime: time.Now()},
				{ID: 2, RunID: runID, NodeID: "research", Type: "COMPLETED", DateTime: time.Now()},
			}, nil
		},
	}
	mux := newTestMux(&MockDefinitionRepo{}, runRepo, stepRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/key-1/steps", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []models.RunStepApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 || resp[1].NodeID != "research" {
		t.Errorf("unexpected steps %+v", resp)
	}
}
