package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/dispatch"
	"github.com/h3ow3d/slicemgr/internal/flavor"
	"github.com/h3ow3d/slicemgr/internal/normalize"
	"github.com/h3ow3d/slicemgr/internal/types"
)

// Form part carrying an uploaded slice document.
const uploadField = "json_file"

type outcomeResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

type listResponse struct {
	Slices []string `json:"slices"`
}

type showResponse struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

type flavorEntry struct {
	Key types.FlavorKey `json:"key"`
	types.Flavor
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFlavors(w http.ResponseWriter, _ *http.Request) {
	keys := flavor.Keys()
	out := make([]flavorEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, flavorEntry{Key: k, Flavor: flavor.Resolve(k)})
	}
	writeJSON(w, http.StatusOK, map[string][]flavorEntry{"flavors": out})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Slices: s.mgr.List(r.Context())})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := backend.CheckName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	info, err := s.mgr.Show(r.Context(), name)
	var exitErr *backend.ExitError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, showResponse{Name: name, Info: info})
	case errors.Is(err, backend.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), string(dispatch.ReasonUnavailable))
	case errors.As(err, &exitErr):
		writeJSON(w, http.StatusBadGateway, outcomeResponse{
			Error:    "show failed",
			Reason:   string(dispatch.ReasonExit),
			Detail:   exitErr.Result.Output,
			ExitCode: exitErr.Result.ExitCode,
		})
	default:
		writeError(w, http.StatusBadGateway, err.Error(), "")
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, status, err := s.readCreateRequest(w, r)
	if err != nil {
		writeError(w, status, err.Error(), "")
		return
	}

	o, err := s.mgr.Create(r.Context(), req)
	if err != nil {
		reason, _ := normalize.ReasonOf(err)
		writeError(w, http.StatusBadRequest, err.Error(), string(reason))
		return
	}
	writeOutcome(w, http.StatusCreated, o)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, http.StatusOK, s.mgr.Delete(r.Context(), r.PathValue("name")))
}

// readCreateRequest maps the request body onto a RawCreateRequest. The
// content type picks the channel: a JSON or YAML body is a payload, a
// multipart form with a json_file part is an upload, and any other form is a
// set of discrete fields.
func (s *Server) readCreateRequest(w http.ResponseWriter, r *http.Request) (normalize.RawCreateRequest, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		if r.ContentLength == 0 {
			return normalize.RawCreateRequest{}, 0, nil
		}
		ct = "application/json"
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return normalize.RawCreateRequest{}, http.StatusUnsupportedMediaType, err
	}

	switch mediaType {
	case "application/json", "application/yaml", "application/x-yaml", "text/yaml":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return normalize.RawCreateRequest{}, bodyStatus(err), err
		}
		if body == nil {
			body = []byte{}
		}
		return normalize.RawCreateRequest{Payload: body}, 0, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return normalize.RawCreateRequest{}, bodyStatus(err), err
		}
		defer r.MultipartForm.RemoveAll()
		if up, ok, err := readUpload(r); err != nil {
			return normalize.RawCreateRequest{}, bodyStatus(err), err
		} else if ok {
			return normalize.RawCreateRequest{Upload: up}, 0, nil
		}
		return normalize.RawCreateRequest{Fields: formFields(r)}, 0, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return normalize.RawCreateRequest{}, bodyStatus(err), err
		}
		return normalize.RawCreateRequest{Fields: formFields(r)}, 0, nil
	}

	return normalize.RawCreateRequest{}, http.StatusUnsupportedMediaType,
		errors.New("unsupported content type " + mediaType)
}

// readUpload returns the json_file part if the form has one. A part sent
// without a filename, as browsers do when no file was chosen, yields an
// empty Upload.
func readUpload(r *http.Request) (*normalize.Upload, bool, error) {
	if _, ok := r.MultipartForm.Value[uploadField]; ok {
		return &normalize.Upload{}, true, nil
	}
	f, hdr, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, false, err
	}
	return &normalize.Upload{Filename: hdr.Filename, Content: content}, true, nil
}

// formFields flattens the form to its first values. An empty form means the
// fields channel was not used.
func formFields(r *http.Request) map[string]string {
	if len(r.PostForm) == 0 {
		return nil
	}
	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// outcomeStatus maps a failed Outcome onto an HTTP status.
func outcomeStatus(o dispatch.Outcome) int {
	switch o.Reason {
	case dispatch.ReasonTimeout:
		return http.StatusGatewayTimeout
	case dispatch.ReasonUnavailable, dispatch.ReasonCanceled:
		return http.StatusServiceUnavailable
	case dispatch.ReasonInvalid:
		return http.StatusBadRequest
	case dispatch.ReasonScratch, dispatch.ReasonEncode:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func writeOutcome(w http.ResponseWriter, okStatus int, o dispatch.Outcome) {
	if o.OK() {
		writeJSON(w, okStatus, outcomeResponse{Success: true, Detail: o.Detail})
		return
	}
	writeJSON(w, outcomeStatus(o), outcomeResponse{
		Error:    "backend reported failure",
		Reason:   string(o.Reason),
		Detail:   o.Detail,
		ExitCode: o.ExitCode,
	})
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, outcomeResponse{Error: msg, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
