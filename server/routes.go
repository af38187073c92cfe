package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/DataSpeaksTech/aici/api"
	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/host"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/runner"
	"github.com/DataSpeaksTech/aici/tokenizer"
)

var errMissingBody = errors.New("missing request body")

// abort writes err with the status its class maps to.
func abort(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, api.ErrCodeGeneral
	switch {
	case errors.Is(err, runner.ErrSequenceNotFound),
		errors.Is(err, library.ErrNotFound),
		errors.Is(err, host.ErrVariableMissing):
		status, code = http.StatusNotFound, api.ErrCodeNotFound
	case errors.Is(err, constraint.ErrState),
		errors.Is(err, host.ErrVersionMismatch):
		status, code = http.StatusConflict, api.ErrCodeConflict
	case errors.Is(err, constraint.ErrUnsatisfiable):
		status, code = http.StatusUnprocessableEntity, api.ErrCodeUnsatisfiable
	case errors.Is(err, constraint.ErrConstruction),
		errors.Is(err, tokenizer.ErrInvalidTokenID),
		errors.Is(err, errMissingBody):
		status, code = http.StatusBadRequest, api.ErrCodeInvalid
	}

	if status == http.StatusInternalServerError {
		logutil.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, api.ErrorResponse{Message: err.Error(), Code: code})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); errors.Is(err, io.EOF) {
		abort(c, errMissingBody)
		return false
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error(), Code: api.ErrCodeInvalid})
		return false
	}
	return true
}

func seqID(c *gin.Context) (runner.SeqID, bool) {
	id, err := api.ParseSeqID(c.Param("id"))
	if err != nil {
		abort(c, fmt.Errorf("%w: %s", runner.ErrSequenceNotFound, c.Param("id")))
		return 0, false
	}
	c.Request = c.Request.WithContext(logutil.WithSequence(c.Request.Context(), c.Param("id")))
	return runner.SeqID(id), true
}

func (s *Server) sequence(id runner.SeqID) (*api.SequenceResponse, error) {
	cons, err := s.runner.Constraint(id)
	if err != nil {
		return nil, err
	}

	text, err := s.runner.Text(id)
	if err != nil {
		return nil, err
	}

	tokens, err := s.runner.Tokens(id)
	if err != nil {
		return nil, err
	}

	return &api.SequenceResponse{
		ID:         id.String(),
		Kind:       cons.Kind().String(),
		Text:       text,
		Tokens:     tokens,
		EOSAllowed: cons.EOSAllowed(),
		EOSForced:  cons.EOSForced(),
	}, nil
}

func (s *Server) TokenizeHandler(c *gin.Context) {
	var req api.TokenizeRequest
	if !bind(c, &req) {
		return
	}

	tokens, err := s.runner.Tokenize(req.Text)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TokenizeResponse{Tokens: tokens})
}

func (s *Server) DetokenizeHandler(c *gin.Context) {
	var req api.DetokenizeRequest
	if !bind(c, &req) {
		return
	}

	b, err := s.runner.Detokenize(req.Tokens)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.DetokenizeResponse{Text: tokenizer.BufferToString(b)})
}

// newConstraint builds the constraint a create request asks for.
func (s *Server) newConstraint(req *api.CreateRequest) (constraint.Constraint, error) {
	switch {
	case req.Name != "" && req.Constraint != nil:
		return nil, &constraint.ConstructionError{Err: errors.New("name and constraint are mutually exclusive")}
	case req.Name != "":
		if s.library == nil {
			return nil, fmt.Errorf("%w: %q", library.ErrNotFound, req.Name)
		}
		return s.library.New(req.Name)
	case req.Constraint != nil:
		spec, err := constraint.DecodeSpec(req.Constraint)
		if err != nil {
			return nil, &constraint.ConstructionError{Err: err}
		}
		return spec.Build(s.runner.Trie())
	default:
		return constraint.NewDefault(s.runner.Trie()), nil
	}
}

func (s *Server) CreateHandler(c *gin.Context) {
	var req api.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error(), Code: api.ErrCodeInvalid})
		return
	}

	cons, err := s.newConstraint(&req)
	if err != nil {
		abort(c, err)
		return
	}

	id := s.runner.NewSequence(cons)
	c.Request = c.Request.WithContext(logutil.WithSequence(c.Request.Context(), id.String()))
	logutil.FromContext(c.Request.Context()).Debug("sequence created", "kind", cons.Kind(), "name", req.Name)

	resp, err := s.sequence(id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) SequenceHandler(c *gin.Context) {
	id, ok := seqID(c)
	if !ok {
		return
	}

	resp, err := s.sequence(id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ForkHandler(c *gin.Context) {
	id, ok := seqID(c)
	if !ok {
		return
	}

	child, err := s.runner.Fork(id)
	if err != nil {
		abort(c, err)
		return
	}

	resp, err := s.sequence(child)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) StepHandler(c *gin.Context) {
	id, ok := seqID(c)
	if !ok {
		return
	}

	res := s.runner.Evaluate(id)
	if res.Err != nil {
		abort(c, res.Err)
		return
	}

	allowed := slices.Collect(res.Set.IDs())
	c.JSON(http.StatusOK, api.StepResponse{
		ID:        id.String(),
		Allowed:   allowed,
		Count:     len(allowed),
		EOSForced: res.EOSForced,
		FFTokens:  res.Forced,
	})
}

func (s *Server) CommitHandler(c *gin.Context) {
	id, ok := seqID(c)
	if !ok {
		return
	}

	var req api.CommitRequest
	if !bind(c, &req) {
		return
	}

	if err := s.runner.Commit(id, req.Token); err != nil {
		abort(c, err)
		return
	}
	logutil.TraceContext(c.Request.Context(), "commit", "token", req.Token)

	resp, err := s.sequence(id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DropHandler(c *gin.Context) {
	id, ok := seqID(c)
	if !ok {
		return
	}

	if !s.runner.Drop(id) {
		abort(c, fmt.Errorf("%w: %s", runner.ErrSequenceNotFound, id))
		return
	}
	logutil.FromContext(c.Request.Context()).Debug("sequence dropped")
	c.Status(http.StatusOK)
}

func (s *Server) GetVarHandler(c *gin.Context) {
	name := c.Param("name")
	resp, err := s.vars.Exec(host.StorageCmd{ReadVar: &host.ReadVar{Name: name}})
	if err != nil {
		abort(c, err)
		return
	}

	if resp.Missing {
		abort(c, fmt.Errorf("%w: %q", host.ErrVariableMissing, name))
		return
	}

	c.JSON(http.StatusOK, api.VarResponse{Name: name, Value: string(resp.Value), Version: resp.Version})
}

func (s *Server) writeVar(c *gin.Context, op host.StorageOp) {
	var req api.VarRequest
	if !bind(c, &req) {
		return
	}

	name := c.Param("name")
	resp, err := s.vars.Exec(host.StorageCmd{WriteVar: &host.WriteVar{
		Name:          name,
		Value:         []byte(req.Value),
		Op:            op,
		WhenVersionIs: req.WhenVersionIs,
	}})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, api.VarResponse{Name: name, Value: string(resp.Value), Version: resp.Version})
}

func (s *Server) SetVarHandler(c *gin.Context) {
	s.writeVar(c, host.OpSet)
}

func (s *Server) AppendVarHandler(c *gin.Context) {
	s.writeVar(c, host.OpAppend)
}

func (s *Server) LibraryHandler(c *gin.Context) {
	resp := api.LibraryResponse{Constraints: []api.LibraryEntry{}}
	if s.library != nil {
		for _, name := range s.library.Names() {
			if p, ok := s.library.Get(name); ok {
				resp.Constraints = append(resp.Constraints, api.LibraryEntry{Name: name, Kind: p.Kind().String()})
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
