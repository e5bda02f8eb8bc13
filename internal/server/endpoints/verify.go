package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/artifact"
	"github.com/veridocproj/veridoc/internal/intake"
	"github.com/veridocproj/veridoc/internal/svcctx"
	"github.com/veridocproj/veridoc/internal/verify"
)

// VerifyResponse carries the verdict of one verification call.
type VerifyResponse struct {
	Verdict *verify.Verdict `json:"verdict"`
}

// VerifyEndpoint handles POST /verify with multipart file upload.
// Each request is one verification call: the uploaded documents are
// processed together and reconciled into a single verdict.
type VerifyEndpoint struct{}

var _ api.Endpoint = (*VerifyEndpoint)(nil)

func (e *VerifyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/verify", e.handler
}

func (e *VerifyEndpoint) RequiresInit() bool { return true }

func (e *VerifyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form with 100MB max memory
	const maxMemory = 100 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	// Optional checklist gate: when a program is named, the upload must
	// cover its document checklist before any OCR spend happens.
	program := r.FormValue("program")
	if program != "" {
		names := make([]string, 0, len(files))
		for _, fh := range files {
			names = append(names, fh.Filename)
		}
		ok, missing, err := intake.Check(program, names)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, VerifyResponse{
				Verdict: verify.ChecklistFailure(program, missing),
			})
			return
		}
	}

	docs := make([]artifact.Document, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open uploaded file: %v", err))
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read %s: %v", fh.Filename, err))
			return
		}
		docs = append(docs, artifact.New(fh.Filename, data))
	}

	engine := svcctx.EngineFrom(r.Context())
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "verification engine not initialized")
		return
	}

	verdict := engine.Verify(r.Context(), docs)
	writeJSON(w, http.StatusOK, VerifyResponse{Verdict: verdict})
}

func (e *VerifyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var program string

	cmd := &cobra.Command{
		Use:   "verify <file>...",
		Short: "Verify documents against the student registry",
		Long: `Upload documents to the server for verification.

The documents are rasterized, OCR'd, and the extracted fields are matched
against the student registry. All files belong to one applicant and are
reconciled into a single verdict.

Examples:
  veridoc api verify marksheet.pdf
  veridoc api verify marksheet.pdf certificate.png
  veridoc api verify --program Graduate transcript.pdf resume.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var uploads []api.UploadFile
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, api.UploadFile{
					Field: "files",
					Name:  filepath.Base(path),
					Data:  data,
				})
			}

			fields := map[string]string{}
			if program != "" {
				fields["program"] = program
			}

			client := api.NewClient(getServerURL())
			var resp VerifyResponse
			if err := client.PostMultipart(ctx, "/verify", fields, uploads, &resp); err != nil {
				return err
			}
			return api.Output(resp.Verdict)
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "Check uploads against this program's document checklist first")
	return cmd
}

// ProgramsResponse lists the known programs and their document checklists.
type ProgramsResponse struct {
	Programs map[string][]string `json:"programs"`
}

// ListProgramsEndpoint handles GET /programs.
type ListProgramsEndpoint struct{}

func (e *ListProgramsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/programs", e.handler
}

func (e *ListProgramsEndpoint) RequiresInit() bool { return false }

func (e *ListProgramsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := ProgramsResponse{Programs: make(map[string][]string)}
	for _, p := range intake.Programs() {
		req, err := intake.Required(p)
		if err != nil {
			continue
		}
		resp.Programs[p] = req
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListProgramsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "List program document checklists",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProgramsResponse
			if err := client.Get(cmd.Context(), "/programs", &resp); err != nil {
				return err
			}
			return api.Output(resp.Programs)
		},
	}
}
