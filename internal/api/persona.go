package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MrWong99/sooshi/internal/persona"
	"github.com/MrWong99/sooshi/pkg/types"
)

type personaResponse struct {
	Age       int                   `json:"age"`
	AgeGroup  persona.AgeGroup      `json:"age_group"`
	Profile   persona.Profile       `json:"profile"`
	Consent   persona.ConsentPolicy `json:"consent"`
	Questions []persona.Question    `json:"questions"`
	Filter    persona.ContentFilter `json:"content_filter"`
}

// groupRequest names an age group either directly or through an age.
// AgeGroup wins when both are set.
type groupRequest struct {
	Age      *int   `json:"age"`
	AgeGroup string `json:"age_group"`
}

func (g groupRequest) resolve() (persona.AgeGroup, error) {
	if g.AgeGroup != "" {
		group, err := persona.ParseAgeGroup(g.AgeGroup)
		if err != nil {
			return "", badInput(err.Error())
		}
		return group, nil
	}
	if g.Age == nil {
		return "", badInput("age or age_group is required")
	}
	return persona.GroupForAge(*g.Age), nil
}

type systemPromptRequest struct {
	groupRequest
	ExtraContext string `json:"extra_context"`
}

type systemPromptResponse struct {
	AgeGroup     persona.AgeGroup `json:"age_group"`
	SystemPrompt string           `json:"system_prompt"`
}

type extractRequest struct {
	groupRequest
	History []types.Message `json:"history"`
}

type filterRequest struct {
	groupRequest
	Items []persona.Item `json:"items"`
}

type filterResponse struct {
	AgeGroup persona.AgeGroup `json:"age_group"`
	Items    []persona.Item   `json:"items"`
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	age, err := strconv.Atoi(r.PathValue("age"))
	if err != nil {
		writeError(w, r, badInput(fmt.Sprintf("age %q is not an integer", r.PathValue("age"))))
		return
	}
	group := persona.GroupForAge(age)
	writeJSON(w, http.StatusOK, personaResponse{
		Age:       age,
		AgeGroup:  group,
		Profile:   s.personas.Profile(group),
		Consent:   persona.Consent(group),
		Questions: s.personas.Questions(group),
		Filter:    persona.FilterFor(group),
	})
}

func (s *Server) handleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := req.resolve()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var prompt string
	if req.AgeGroup == "" {
		prompt = s.personas.SystemPromptForAge(*req.Age, req.ExtraContext)
	} else {
		prompt = persona.BuildSystemPrompt(group, s.personas.Profile(group), req.ExtraContext)
	}
	writeJSON(w, http.StatusOK, systemPromptResponse{AgeGroup: group, SystemPrompt: prompt})
}

// handleExtract always answers 200. A failed extraction yields the default
// profile.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := req.resolve()
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i, m := range req.History {
		if !m.Role.IsValid() {
			writeError(w, r, badInput(fmt.Sprintf("history[%d]: unknown role %q", i, m.Role)))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.personas.ExtractProfile(r.Context(), group, req.History))
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := req.resolve()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filterResponse{
		AgeGroup: group,
		Items:    persona.FilterByAge(req.Items, group),
	})
}

// decodeJSON reads exactly one JSON object from the size limited body.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var me *http.MaxBytesError
		if errors.As(err, &me) {
			return err
		}
		return badInput("malformed JSON body: " + err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return badInput("malformed JSON body: trailing data")
	}
	return nil
}
