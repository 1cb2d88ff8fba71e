package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/register"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/ubo"
	"github.com/opensource-finance/harrier/internal/validate"
)

// resolutionCacheTTL bounds how long a synchronous resolve result may
// serve cached reads.
const resolutionCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	resolver  *ubo.Resolver
	validator *validate.Validator
	registers *register.Builder
	processor *risk.Processor
	version   string

	// overrideCheck validates profile override expressions at create time.
	overrideCheck *risk.OverrideEngine
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, resolver *ubo.Resolver, validator *validate.Validator, registers *register.Builder, processor *risk.Processor, version string) *Handler {
	check, err := risk.NewOverrideEngine()
	if err != nil {
		slog.Error("failed to build override validation engine", "error", err)
		check = nil
	}
	return &Handler{
		repo:          repo,
		cache:         cache,
		bus:           bus,
		resolver:      resolver,
		validator:     validator,
		registers:     registers,
		processor:     processor,
		version:       version,
		overrideCheck: check,
	}
}

// ============================================================================
// PARTY AND EDGE HANDLERS
// ============================================================================

// CreateParty handles POST /parties.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.PartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if req.Kind != domain.PartyCompany && req.Kind != domain.PartyIndividual {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "kind must be 'company' or 'individual'",
		})
		return
	}

	party := req.ToParty(tenantID)
	if party.ID == "" {
		party.ID = uuid.New().String()
	}

	if err := h.repo.SaveParty(ctx, tenantID, party); err != nil {
		slog.Error("failed to save party", "id", party.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save party",
		})
		return
	}

	writeJSON(w, http.StatusCreated, party)
}

// GetParty handles GET /parties/{id}.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	partyID := chi.URLParam(r, "id")

	party, err := h.repo.GetParty(ctx, tenantID, partyID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "party not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, party)
}

// ListEdges handles GET /parties/{id}/edges.
func (h *Handler) ListEdges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	partyID := chi.URLParam(r, "id")

	edges, err := h.repo.EdgesFor(ctx, tenantID, partyID)
	if err != nil {
		slog.Error("failed to list edges", "party_id", partyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list edges",
		})
		return
	}
	if edges == nil {
		edges = []*domain.OwnershipEdge{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"edges": edges,
		"count": len(edges),
	})
}

// CreateEdge handles POST /edges. Percentages outside [0,100] are stored
// as given; the structure validator surfaces them as warnings.
func (h *Handler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.EdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.OwnerID == "" || req.OwnedID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ownerId and ownedId are required",
		})
		return
	}
	switch req.Kind {
	case domain.EdgeOwnership, domain.EdgeControl, domain.EdgeDirector,
		domain.EdgeManages, domain.EdgeEmployee, domain.EdgeFamily:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown edge kind",
		})
		return
	}

	edge := req.ToEdge(tenantID)
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}

	if err := h.repo.SaveEdge(ctx, tenantID, edge); err != nil {
		slog.Error("failed to save edge", "id", edge.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save edge",
		})
		return
	}

	// Drop cached resolutions for both endpoints. Resolutions rooted at
	// deeper ancestors age out via TTL.
	if h.cache != nil {
		_ = h.cache.InvalidateResolution(ctx, tenantID, edge.OwnerID)
		_ = h.cache.InvalidateResolution(ctx, tenantID, edge.OwnedID)
	}

	writeJSON(w, http.StatusCreated, edge)
}

// ============================================================================
// RESOLUTION HANDLERS
// ============================================================================

// ResolveRequest is the optional request body for POST /parties/{id}/resolve.
type ResolveRequest struct {
	// SeniorManagerID overrides the stored senior manager for the
	// fallback classification.
	SeniorManagerID string `json:"seniorManagerId,omitempty"`

	// Force skips the resolution cache.
	Force bool `json:"force,omitempty"`
}

// ResolveResponse is the response for POST /parties/{id}/resolve.
type ResolveResponse struct {
	ResolutionID string                   `json:"resolutionId,omitempty"`
	Result       *domain.ResolutionResult `json:"result"`
	Cached       bool                     `json:"cached"`
	Metadata     struct {
		TraceID   string `json:"traceId"`
		ResolveMs int64  `json:"resolveMs"`
		Version   string `json:"version"`
	} `json:"metadata"`
}

// Resolve handles POST /parties/{id}/resolve: the synchronous resolution
// path. Async callers publish to the resolution.requested topic instead.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)
	rootID := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Cached results are only valid for the default classification inputs.
	if h.cache != nil && !req.Force && req.SeniorManagerID == "" {
		if cached, err := h.cache.GetResolution(ctx, tenantID, rootID); err == nil && cached != nil {
			resp := ResolveResponse{Result: cached, Cached: true}
			resp.Metadata.TraceID = traceID
			resp.Metadata.ResolveMs = time.Since(start).Milliseconds()
			resp.Metadata.Version = h.version
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	result, snap, err := h.resolver.Resolve(ctx, tenantID, rootID, req.SeniorManagerID)
	if err != nil {
		slog.Error("resolution failed", "root_id", rootID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "resolution failed",
		})
		return
	}

	resolution := &domain.Resolution{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		RootID:    rootID,
		Result:    *result,
		Timestamp: time.Now().UTC(),
		Metadata: domain.ResolutionMetadata{
			TraceID:       traceID,
			PartiesLoaded: len(snap.Parties),
			EdgesLoaded:   len(snap.Edges),
			ResolveMs:     time.Since(start).Milliseconds(),
			EngineVersion: ubo.EngineVersion,
		},
	}

	if h.repo != nil {
		if err := h.repo.SaveResolution(ctx, tenantID, resolution); err != nil {
			slog.Error("failed to save resolution", "root_id", rootID, "error", err)
		}
	}

	if h.cache != nil && req.SeniorManagerID == "" {
		if err := h.cache.SetResolution(ctx, tenantID, rootID, result, resolutionCacheTTL); err != nil {
			slog.Warn("failed to cache resolution", "root_id", rootID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(resolution)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicResolutionCompleted, payload); err != nil {
			slog.Error("failed to publish resolution", "root_id", rootID, "error", err)
		}
	}

	resp := ResolveResponse{ResolutionID: resolution.ID, Result: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.ResolveMs = resolution.Metadata.ResolveMs
	resp.Metadata.Version = h.version
	writeJSON(w, http.StatusOK, resp)
}

// GetResolution retrieves a stored resolution snapshot by ID.
func (h *Handler) GetResolution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	resolutionID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	res, err := h.repo.GetResolution(ctx, tenantID, resolutionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "resolution not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ============================================================================
// VALIDATION HANDLER
// ============================================================================

// Validate handles POST /parties/{id}/validate: ownership completeness,
// cycle detection and dead-end shareholder checks.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	rootID := chi.URLParam(r, "id")

	result, err := h.validator.Validate(ctx, tenantID, rootID)
	if err != nil {
		slog.Error("validation failed", "root_id", rootID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "validation failed",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicValidationCompleted, payload); err != nil {
			slog.Error("failed to publish validation", "root_id", rootID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// ============================================================================
// RISK HANDLERS
// ============================================================================

// RiskScoreRequest is the optional request body for POST /parties/{id}/risk.
type RiskScoreRequest struct {
	// Weights overrides the profile factor weights for this request only.
	Weights map[string]float64 `json:"weights,omitempty"`
}

// ScoreRisk handles POST /parties/{id}/risk: computes and persists a
// fresh risk assessment.
func (h *Handler) ScoreRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)
	partyID := chi.URLParam(r, "id")

	var req RiskScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	party, err := h.repo.GetParty(ctx, tenantID, partyID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "party not found",
		})
		return
	}

	in := &risk.ScoreInput{
		TenantID: tenantID,
		TraceID:  traceID,
		Party:    party,
		Edges:    h.repo,
		Weights:  req.Weights,
	}

	assessment, err := h.processor.Score(ctx, in)
	if err != nil {
		slog.Error("risk scoring failed", "party_id", partyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "risk scoring failed",
		})
		return
	}

	if err := h.repo.SaveRiskAssessment(ctx, tenantID, assessment); err != nil {
		slog.Error("failed to save risk assessment", "party_id", partyID, "error", err)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(assessment)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicRiskScored, payload); err != nil {
			slog.Error("failed to publish risk assessment", "party_id", partyID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// GetRiskAssessment retrieves the latest stored assessment for a party.
func (h *Handler) GetRiskAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	partyID := chi.URLParam(r, "id")

	assessment, err := h.repo.GetRiskAssessment(ctx, tenantID, partyID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "risk assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// ============================================================================
// REGISTER HANDLER
// ============================================================================

// GetRegister handles GET /parties/{id}/register: builds the UBO,
// partners and directors registers from a fresh resolution.
func (h *Handler) GetRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	rootID := chi.URLParam(r, "id")

	reg, err := h.registers.Build(ctx, tenantID, rootID)
	if err != nil {
		slog.Error("register build failed", "root_id", rootID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "register build failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// ============================================================================
// RISK PROFILE HANDLERS
// ============================================================================

// RiskProfileRequest is the request body for creating a risk profile.
type RiskProfileRequest struct {
	ID                  string                `json:"id,omitempty"`
	Name                string                `json:"name"`
	HighRiskCountries   []string              `json:"highRiskCountries,omitempty"`
	MediumRiskCountries []string              `json:"mediumRiskCountries,omitempty"`
	HighRiskKeywords    []string              `json:"highRiskKeywords,omitempty"`
	MediumRiskKeywords  []string              `json:"mediumRiskKeywords,omitempty"`
	Weights             map[string]float64    `json:"weights,omitempty"`
	UBOThreshold        float64               `json:"uboThreshold,omitempty"`
	Overrides           []domain.OverrideRule `json:"overrides,omitempty"`
	Enabled             bool                  `json:"enabled"`
}

// ListRiskProfiles returns the tenant's stored risk profiles.
func (h *Handler) ListRiskProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	profiles, err := h.repo.ListRiskProfiles(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list risk profiles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list risk profiles",
		})
		return
	}
	if profiles == nil {
		profiles = []*domain.RiskProfile{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// GetRiskProfile retrieves a risk profile by ID.
func (h *Handler) GetRiskProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	profileID := chi.URLParam(r, "id")

	profile, err := h.repo.GetRiskProfile(ctx, tenantID, profileID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "risk profile not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// CreateRiskProfile creates a risk profile. Override expressions are
// compile-checked up front so a bad rule is rejected at write time, not
// at the first scoring request after reload.
func (h *Handler) CreateRiskProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req RiskProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	if h.overrideCheck != nil {
		for _, rule := range req.Overrides {
			if err := h.overrideCheck.ValidateRule(rule); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "invalid override expression: " + err.Error(),
				})
				return
			}
		}
	}

	now := time.Now().UTC()
	profile := &domain.RiskProfile{
		ID:                  req.ID,
		TenantID:            tenantID,
		Name:                req.Name,
		Version:             "1.0.0",
		HighRiskCountries:   req.HighRiskCountries,
		MediumRiskCountries: req.MediumRiskCountries,
		HighRiskKeywords:    req.HighRiskKeywords,
		MediumRiskKeywords:  req.MediumRiskKeywords,
		Weights:             req.Weights,
		UBOThreshold:        req.UBOThreshold,
		Overrides:           req.Overrides,
		Enabled:             req.Enabled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}

	if h.repo != nil {
		if err := h.repo.SaveRiskProfile(ctx, tenantID, profile); err != nil {
			slog.Error("failed to save risk profile", "id", profile.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save risk profile",
			})
			return
		}
	}

	slog.Info("risk profile created", "id", profile.ID, "name", profile.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile": profile,
		"message": "Profile created. Call POST /risk-profiles/reload to apply changes.",
	})
}

// ReloadRiskProfileRequest selects which profile to activate.
type ReloadRiskProfileRequest struct {
	// ProfileID names the profile to activate. When empty, the first
	// enabled stored profile is used.
	ProfileID string `json:"profileId,omitempty"`
}

// ReloadRiskProfile activates a stored profile: swaps it into the risk
// processor and propagates its UBO threshold to the resolver.
func (h *Handler) ReloadRiskProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req ReloadRiskProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	var profile *domain.RiskProfile
	if req.ProfileID != "" {
		p, err := h.repo.GetRiskProfile(ctx, tenantID, req.ProfileID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "risk profile not found",
			})
			return
		}
		profile = p
	} else {
		profiles, err := h.repo.ListRiskProfiles(ctx, tenantID)
		if err != nil {
			slog.Error("failed to list risk profiles", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list risk profiles",
			})
			return
		}
		for _, p := range profiles {
			if p.Enabled {
				profile = p
				break
			}
		}
		if profile == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no enabled risk profile found",
			})
			return
		}
	}

	if err := h.processor.Reload(profile); err != nil {
		slog.Error("failed to reload risk profile", "id", profile.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload risk profile: " + err.Error(),
		})
		return
	}
	if h.resolver != nil {
		h.resolver.SetThreshold(profile.UBOThreshold)
	}

	slog.Info("risk profile reloaded",
		"id", profile.ID,
		"override_count", len(profile.Overrides),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "risk profile reloaded successfully",
		"profileId": profile.ID,
	})
}

// ============================================================================
// HEALTH HANDLERS
// ============================================================================

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
