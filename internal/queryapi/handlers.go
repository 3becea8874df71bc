package queryapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type stateInfo struct {
	LastPosition int64  `json:"last_position"`
	Digest       string `json:"digest"`
}

func (s *Server) stateInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pos, err := s.state.DB.LastPosition(ctx)
	if err != nil {
		respond(w, r, nil, false, err)
		return
	}
	digest, err := s.state.DB.Digest(ctx)
	respond(w, r, stateInfo{LastPosition: pos, Digest: digest}, true, err)
}

func (s *Server) formByKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "formKey")
	if !ok {
		return
	}
	form, found, err := s.state.Forms.FindByKey(r.Context(), key)
	respond(w, r, form, found, err)
}

// formByID resolves a form id to one version: by version, version_tag or
// deployment_key when given, otherwise the latest.
func (s *Server) formByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formID := chi.URLParam(r, "formID")
	tenant := tenantParam(r)
	q := r.URL.Query()

	var (
		form  *protocol.FormRecord
		found bool
		err   error
	)
	switch {
	case q.Get("version") != "":
		v, perr := strconv.ParseInt(q.Get("version"), 10, 32)
		if perr != nil {
			writeError(w, r, http.StatusBadRequest, "version must be an integer")
			return
		}
		form, found, err = s.state.Forms.FindByIDAndVersion(ctx, formID, int32(v), tenant)
	case q.Get("version_tag") != "":
		form, found, err = s.state.Forms.FindByIDAndVersionTag(ctx, formID, q.Get("version_tag"), tenant)
	case q.Get("deployment_key") != "":
		dk, perr := strconv.ParseInt(q.Get("deployment_key"), 10, 64)
		if perr != nil {
			writeError(w, r, http.StatusBadRequest, "deployment_key must be an integer")
			return
		}
		form, found, err = s.state.Forms.FindByIDAndDeploymentKey(ctx, formID, dk, tenant)
	default:
		form, found, err = s.state.Forms.FindLatestByID(ctx, formID, tenant)
	}
	respond(w, r, form, found, err)
}

type userTaskView struct {
	Record          *protocol.UserTaskRecord   `json:"record"`
	LifecycleState  state.LifecycleState       `json:"lifecycle_state"`
	Intermediate    *state.IntermediateState   `json:"intermediate,omitempty"`
	InitialAssignee string                     `json:"initial_assignee,omitempty"`
	RequestMetadata *state.RequestMetadata     `json:"request_metadata,omitempty"`
	AssigneeAudit   []state.AssigneeAuditEntry `json:"assignee_audit"`
}

func (s *Server) userTask(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	ctx := r.Context()
	tasks := s.state.UserTasks

	task, found, err := tasks.Get(ctx, key)
	if err != nil || !found {
		respond(w, r, nil, found, err)
		return
	}
	view := userTaskView{Record: task}
	if view.LifecycleState, err = tasks.LifecycleState(ctx, key); err != nil {
		respond(w, r, nil, false, err)
		return
	}
	if view.Intermediate, _, err = tasks.IntermediateState(ctx, key); err != nil {
		respond(w, r, nil, false, err)
		return
	}
	if view.InitialAssignee, _, err = tasks.InitialAssignee(ctx, key); err != nil {
		respond(w, r, nil, false, err)
		return
	}
	if view.RequestMetadata, _, err = tasks.RequestMetadata(ctx, key); err != nil {
		respond(w, r, nil, false, err)
		return
	}
	view.AssigneeAudit, err = tasks.AssigneeAuditLog(ctx, key)
	respond(w, r, view, true, err)
}

func (s *Server) elementInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	inst, found, err := s.state.ElementInstances.Get(r.Context(), key)
	respond(w, r, inst, found, err)
}

type jobView struct {
	Record *protocol.JobRecord `json:"record"`
	State  state.JobState      `json:"state"`
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	ctx := r.Context()
	job, found, err := s.state.Jobs.Get(ctx, key)
	if err != nil || !found {
		respond(w, r, nil, found, err)
		return
	}
	jobState, err := s.state.Jobs.State(ctx, key)
	respond(w, r, jobView{Record: job, State: jobState}, true, err)
}

func (s *Server) incident(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	incident, found, err := s.state.Incidents.Get(r.Context(), key)
	respond(w, r, incident, found, err)
}

func (s *Server) role(w http.ResponseWriter, r *http.Request) {
	role, found, err := s.state.Roles.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	respond(w, r, role, found, err)
}

func (s *Server) mappingRule(w http.ResponseWriter, r *http.Request) {
	rule, found, err := s.state.MappingRules.Get(r.Context(), chi.URLParam(r, "mappingRuleID"))
	respond(w, r, rule, found, err)
}

func (s *Server) activeUsageBucket(w http.ResponseWriter, r *http.Request) {
	bucket, found, err := s.state.UsageMetrics.ActiveBucket(r.Context())
	respond(w, r, bucket, found, err)
}

func (s *Server) currentGlobalListeners(w http.ResponseWriter, r *http.Request) {
	batch, found, err := s.state.GlobalListeners.Current(r.Context())
	respond(w, r, batch, found, err)
}
