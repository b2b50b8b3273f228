package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/types"
)

const (
	defaultTestText   = "Hello! I want to learn art."
	testFlowPrompt    = "You are Sooshi, a friendly AI learning assistant."
	speechContentType = "audio/wav"
	speechDisposition = "attachment; filename=speech.wav"
)

type providerResponse struct {
	Provider     string `json:"provider"`
	ProviderName string `json:"provider_name"`
	Status       string `json:"status"`
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

type chatResponse struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
}

type voiceResponse struct {
	RequestID string `json:"request_id,omitempty"`
	UserText  string `json:"user_text"`
	AIText    string `json:"ai_text"`
	Provider  string `json:"provider"`
	AIAudio   string `json:"ai_audio,omitempty"`
}

type testFlowResponse struct {
	UserText string `json:"user_text"`
	AIText   string `json:"ai_text"`
	AIAudio  string `json:"ai_audio"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

func (s *Server) handleProvider(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, providerResponse{
		Provider:     string(s.svc.ActiveProvider()),
		ProviderName: s.svc.ActiveProviderName(),
		Status:       "active",
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	audio, err := readAudio(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.svc.SpeechToText(r.Context(), audio)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text, Provider: string(s.svc.ActiveProvider())})
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := requiredField(r, "text")
	if err != nil {
		writeError(w, r, err)
		return
	}
	audio, err := s.svc.TextToSpeech(r.Context(), text, r.FormValue("voice"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", speechContentType)
	w.Header().Set("Content-Disposition", speechDisposition)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	message, err := requiredField(r, "message")
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := parseHistory(r.FormValue("conversation_history"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.svc.Chat(r.Context(), message,
		assistant.WithHistory(history),
		assistant.WithSystemPrompt(r.FormValue("system_prompt")),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply, Provider: string(s.svc.ActiveProvider())})
}

func (s *Server) handleVoiceConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	audio, err := readAudio(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := parseHistory(r.FormValue("conversation_history"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	wantAudio := true
	if v := r.FormValue("return_audio"); v != "" {
		var ok bool
		if wantAudio, ok = parseFormBool(v); !ok {
			writeError(w, r, badInput(fmt.Sprintf("return_audio: %q is not a boolean", v)))
			return
		}
	}

	res, err := s.svc.VoiceConversation(r.Context(), audio, assistant.VoiceOptions{
		History:      history,
		SystemPrompt: r.FormValue("system_prompt"),
		WantAudio:    wantAudio,
		Voice:        r.FormValue("voice"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := voiceResponse{
		RequestID: observe.RequestID(r.Context()),
		UserText:  res.UserText,
		AIText:    res.AIText,
		Provider:  string(s.svc.ActiveProvider()),
	}
	if res.AIAudio != nil {
		resp.AIAudio = base64.StdEncoding.EncodeToString(res.AIAudio)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTestFlow runs generate then synthesize on a canned or supplied
// sentence, skipping transcription. It checks the backend wiring end to end
// without an audio file.
func (s *Server) handleTestFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	text := r.FormValue("test_text")
	if strings.TrimSpace(text) == "" {
		text = defaultTestText
	}

	reply, err := s.svc.Chat(r.Context(), text, assistant.WithSystemPrompt(testFlowPrompt))
	if err != nil {
		writeError(w, r, &assistant.StageError{Stage: assistant.StageGenerate, Err: err})
		return
	}
	audio, err := s.svc.TextToSpeech(r.Context(), reply, "")
	if err != nil {
		writeError(w, r, &assistant.StageError{Stage: assistant.StageSynthesize, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, testFlowResponse{
		UserText: text,
		AIText:   reply,
		AIAudio:  base64.StdEncoding.EncodeToString(audio),
		Provider: s.svc.ActiveProviderName(),
		Status:   "success",
	})
}

// parseForm limits the body size and parses either encoding of form data.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var me *http.MaxBytesError
	if errors.As(err, &me) {
		return err
	}
	return badInput("malformed form body: " + err.Error())
}

func requiredField(r *http.Request, name string) (string, error) {
	if !r.PostForm.Has(name) {
		return "", badInput(name + " is required")
	}
	return r.PostForm.Get(name), nil
}

// parseFormBool reads a boolean form field the way HTML form clients send
// them: 1/0, t/f, true/false, yes/no and on/off, in any case.
func parseFormBool(v string) (b, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, true
	case "0", "f", "false", "n", "no", "off":
		return false, true
	}
	return false, false
}

// readAudio returns the bytes of the "audio" file part.
func readAudio(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("audio")
	if err != nil {
		return nil, badInput("audio file is required")
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, badInput("reading audio: " + err.Error())
	}
	return audio, nil
}

// parseHistory decodes the JSON encoded conversation_history field. An empty
// field is an empty history.
func parseHistory(raw string) ([]types.Message, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var history []types.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, badInput("conversation_history: " + err.Error())
	}
	for i, m := range history {
		if !m.Role.IsValid() {
			return nil, badInput(fmt.Sprintf("conversation_history[%d]: unknown role %q", i, m.Role))
		}
	}
	return history, nil
}
