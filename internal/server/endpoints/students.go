package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/registry"
	"github.com/veridocproj/veridoc/internal/svcctx"
)

// StudentsResponse contains a list of registry records.
type StudentsResponse struct {
	Students []registry.Record `json:"students"`
	Total    int               `json:"total"`
}

// ImportStudentsResponse reports an import.
type ImportStudentsResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// ListStudentsEndpoint handles GET /students.
type ListStudentsEndpoint struct{}

func (e *ListStudentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/students", e.handler
}

func (e *ListStudentsEndpoint) RequiresInit() bool { return true }

func (e *ListStudentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StudentsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "student registry not available")
		return
	}

	recs, err := store.Records(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StudentsResponse{
		Students: recs,
		Total:    len(recs),
	})
}

func (e *ListStudentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List student registry records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StudentsResponse
			if err := client.Get(cmd.Context(), "/students", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ImportStudentsEndpoint handles POST /students/import with a multipart
// workbook upload. Rows merge into the registry by identity number.
type ImportStudentsEndpoint struct{}

func (e *ImportStudentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/students/import", e.handler
}

func (e *ImportStudentsEndpoint) RequiresInit() bool { return true }

func (e *ImportStudentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 50 << 20 // 50MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no workbook uploaded")
		return
	}
	fh := files[0]
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not an xlsx workbook", fh.Filename))
		return
	}

	store := svcctx.StudentsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "student registry not available")
		return
	}

	// The workbook parser reads from disk, so stage the upload.
	src, err := fh.Open()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open upload: %v", err))
		return
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "veridoc-import-*.xlsx")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage upload: %v", err))
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage upload: %v", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage upload: %v", err))
		return
	}

	n, err := registry.Import(r.Context(), store, tmpPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("import failed: %v", err))
		return
	}

	total, err := store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("imported registry workbook", "file", fh.Filename, "rows", n, "total", total)
	}

	writeJSON(w, http.StatusOK, ImportStudentsResponse{
		Imported: n,
		Total:    total,
	})
}

func (e *ImportStudentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import registry records from an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp ImportStudentsResponse
			err = client.PostMultipart(ctx, "/students/import", nil, []api.UploadFile{{
				Field: "file",
				Name:  filepath.Base(args[0]),
				Data:  data,
			}}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
