package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/graphflowhq/graphflow/internal/agents"
	"github.com/graphflowhq/graphflow/internal/engine"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/models"
)

// Mock repos for controller tests, implementing the engine interfaces.

type MockDefinitionRepo struct {
	FindAllFunc      func() (*[]domain.WorkflowDefinition, error)
	FindByNameFunc   func(name string) (*domain.WorkflowDefinition, error)
	SaveFunc         func(def *domain.WorkflowDefinition) error
	DeleteByNameFunc func(name string) (bool, error)
}

func (m *MockDefinitionRepo) FindAll() (*[]domain.WorkflowDefinition, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc()
	}
	return &[]domain.WorkflowDefinition{}, nil
}
func (m *MockDefinitionRepo) FindByName(name string) (*domain.WorkflowDefinition, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(name)
	}
	return nil, nil
}
func (m *MockDefinitionRepo) Save(def *domain.WorkflowDefinition) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(def)
	}
	return nil
}
func (m *MockDefinitionRepo) DeleteByName(name string) (bool, error) {
	if m.DeleteByNameFunc != nil {
		return m.DeleteByNameFunc(name)
	}
	return false, nil
}

type MockRunRepo struct {
	SaveFunc                func(run *domain.WorkflowRun) (int64, error)
	FindByRunKeyFunc        func(key string) (*domain.WorkflowRun, error)
	FindAllByDefinitionFunc func(name string, limit int) (*[]domain.WorkflowRun, error)
}

func (m *MockRunRepo) Save(run *domain.WorkflowRun) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(run)
	}
	return 1, nil
}
func (m *MockRunRepo) FindByID(id int64) (*domain.WorkflowRun, error) { return nil, nil }
func (m *MockRunRepo) FindByRunKey(key string) (*domain.WorkflowRun, error) {
	if m.FindByRunKeyFunc != nil {
		return m.FindByRunKeyFunc(key)
	}
	return nil, nil
}
func (m *MockRunRepo) FindPendingRuns(size int, executorGroup string) (*[]domain.WorkflowRun, error) {
	return &[]domain.WorkflowRun{}, nil
}
func (m *MockRunRepo) MarkRunAsScheduledForExecution(id int64, executorID string, modified time.Time) bool {
	return true
}
func (m *MockRunRepo) UpdateStatus(id int64, status string) error      { return nil }
func (m *MockRunRepo) UpdateStartingTime(id int64) error               { return nil }
func (m *MockRunRepo) UpdateCurrentNode(id int64, nodeID string) error { return nil }
func (m *MockRunRepo) SaveRunVariables(id int64, vars string) error    { return nil }
func (m *MockRunRepo) IncrementExecutionCount(id int64) error          { return nil }
func (m *MockRunRepo) IncrementRetryCounterAndSetNextActivation(id int64, activation time.Time) error {
	return nil
}
func (m *MockRunRepo) ClearExecutorID(id int64) error                              { return nil }
func (m *MockRunRepo) UpdateNextActivationSpecific(id int64, next time.Time) error { return nil }
func (m *MockRunRepo) FindStuckRuns(minutesRepair string, executorGroup string, limit int) (*[]domain.WorkflowRun, error) {
	return &[]domain.WorkflowRun{}, nil
}
func (m *MockRunRepo) FindAllByDefinition(name string, limit int) (*[]domain.WorkflowRun, error) {
	if m.FindAllByDefinitionFunc != nil {
		return m.FindAllByDefinitionFunc(name, limit)
	}
	return &[]domain.WorkflowRun{}, nil
}

type MockRunStepRepo struct {
	FindAllByRunIDFunc func(runID int64) (*[]domain.RunStep, error)
}

func (m *MockRunStepRepo) Save(s *domain.RunStep) (int64, error) { return 1, nil }
func (m *MockRunStepRepo) FindAllByRunID(runID int64) (*[]domain.RunStep, error) {
	if m.FindAllByRunIDFunc != nil {
		return m.FindAllByRunIDFunc(runID)
	}
	return &[]domain.RunStep{}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c fixedClock) Sleep(d time.Duration)                  {}

func newTestMux(defRepo *MockDefinitionRepo, runRepo *MockRunRepo, stepRepo *MockRunStepRepo) *http.ServeMux {
	clock := fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	manager := engine.NewRunManager(runRepo, stepRepo, defRepo, agents.NewRegistry(), clock)
	mux := http.NewServeMux()
	NewDefinitionsController(manager, clock).RegisterRoutes(mux)
	NewRunsController(manager, clock).RegisterRoutes(mux)
	return mux
}

const validDefinitionJSON = `{
	"nodes": [
		{"id": "research", "type": "agent", "agent": "research"},
		{"id": "write", "type": "agent", "agent": "writer"}
	],
	"edges": [{"source": "research", "target": "write"}]
}`

const cyclicDefinitionJSON = `{
	"nodes": [{"id": "a"}, {"id": "b"}],
	"edges": [
		{"source": "a", "target": "b"},
		{"source": "b", "target": "a"}
	]
}`

func TestValidateDefinitionEndpointAccepts(t *testing.T) {
	mux := newTestMux(&MockDefinitionRepo{}, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/definitions/validate", strings.NewReader(validDefinitionJSON))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.ValidateDefinitionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Valid || resp.Definition == nil || len(resp.Definition.Nodes) != 2 {
		t.Errorf("expected valid response echoing the definition, got %+v", resp)
	}
}

func TestValidateDefinitionEndpointRejectsCycle(t *testing.T) {
	mux := newTestMux(&MockDefinitionRepo{}, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/definitions/validate", strings.NewReader(cyclicDefinitionJSON))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp models.ValidateDefinitionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Valid || !strings.Contains(resp.Error, "cycle") {
		t.Errorf("expected cycle failure message, got %+v", resp)
	}
}

func TestSaveDefinitionPersistsValidGraph(t *testing.T) {
	var saved *domain.WorkflowDefinition
	defRepo := &MockDefinitionRepo{
		SaveFunc: func(def *domain.WorkflowDefinition) error {
			saved = def
			return nil
		},
	}
	mux := newTestMux(defRepo, &MockRunRepo{}, &MockRunStepRepo{})

	body := `{"description": "writes blog posts", "workflow": ` + validDefinitionJSON + `}`
	req := httptest.NewRequest(http.MethodPut, "/api/definitions/blog-post", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if saved == nil {
		t.Fatal("expected definition to be saved")
	}
	if saved.Name != "blog-post" || saved.Revision == "" || saved.Checksum == "" {
		t.Errorf("saved definition missing metadata: %+v", saved)
	}
	var resp models.SaveDefinitionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Revision != saved.Revision || resp.Checksum != saved.Checksum {
		t.Errorf("response does not match saved record: %+v", resp)
	}
}

func TestSaveDefinitionRejectsInvalidGraph(t *testing.T) {
	saveCalled := false
	defRepo := &MockDefinitionRepo{
		SaveFunc: func(def *domain.WorkflowDefinition) error {
			saveCalled = true
			return nil
		},
	}
	mux := newTestMux(defRepo, &MockRunRepo{}, &MockRunStepRepo{})

	body := `{"workflow": ` + cyclicDefinitionJSON + `}`
	req := httptest.NewRequest(http.MethodPut, "/api/definitions/broken", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if saveCalled {
		t.Error("invalid definition must never reach the store")
	}
}

func TestSaveDefinitionUnchangedKeepsRevision(t *testing.T) {
	existing := &domain.WorkflowDefinition{
		Name:     "blog-post",
		Revision: "rev-1",
	}
	saveCalled := false
	defRepo := &MockDefinitionRepo{
		FindByNameFunc: func(name string) (*domain.WorkflowDefinition, error) {
			return existing, nil
		},
		SaveFunc: func(def *domain.WorkflowDefinition) error {
			saveCalled = true
			return nil
		},
	}
	mux := newTestMux(defRepo, &MockRunRepo{}, &MockRunStepRepo{})

	// first round trip to learn the canonical checksum
	body := `{"workflow": ` + validDefinitionJSON + `}`
	req := httptest.NewRequest(http.MethodPut, "/api/definitions/blog-post", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var first models.SaveDefinitionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}

	existing.Checksum = first.Checksum
	saveCalled = false

	req = httptest.NewRequest(http.MethodPut, "/api/definitions/blog-post", strings.NewReader(body))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if saveCalled {
		t.Error("unchanged definition should not be re-saved")
	}
	var resp models.SaveDefinitionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Revision != "rev-1" {
		t.Errorf("expected existing revision, got %s", resp.Revision)
	}
}

func TestGetDefinitionNotFound(t *testing.T) {
	mux := newTestMux(&MockDefinitionRepo{}, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/definitions/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteDefinition(t *testing.T) {
	defRepo := &MockDefinitionRepo{
		DeleteByNameFunc: func(name string) (bool, error) {
			return name == "blog-post", nil
		},
	}
	mux := newTestMux(defRepo, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodDelete, "/api/definitions/blog-post", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/definitions/other", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown definition, got %d", rec.Code)
	}
}

func TestListDefinitions(t *testing.T) {
	defRepo := &MockDefinitionRepo{
		FindAllFunc: func() (*[]domain.WorkflowDefinition, error) {
			return &[]domain.WorkflowDefinition{{Name: "a"}, {Name: "b"}}, nil
		},
	}
	mux := newTestMux(defRepo, &MockRunRepo{}, &MockRunStepRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/definitions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []models.DefinitionApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 {
		t.Errorf("expected 2 definitions, got %d", len(resp))
	}
}
