package tooling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	"billtool/internal/billing"
)

var (
	webhooks = collection{res: billing.Webhooks, singular: "Webhook"}
	reports  = collection{res: billing.Reports, singular: "Report"}
	events   = collection{res: billing.Events, singular: "Event"}
	tasks    = collection{res: billing.Tasks, singular: "Task"}
	files    = collection{res: billing.Files, singular: "File"}
)

func webhookTools() []Tool {
	return webhooks.crud(
		[5]Name{ListWebhooks, GetWebhook, CreateWebhook, UpdateWebhook, DeleteWebhook},
		"webhooks",
		WithProperty("url", "Endpoint that receives event payloads", true),
		WithProperty("events", "Event types to deliver; omit for all", false),
	)
}

func reportTools() []Tool {
	return []Tool{
		reports.create(CreateReport, "Start generating a report; poll get_report until it is ready",
			WithProperty("type", "Report type, e.g. aging, sales_summary", true),
			WithProperty("parameters", "Report parameters such as start and end dates", false)),
		reports.get(GetReport, "Retrieve a report and its download link"),
	}
}

func eventTools() []Tool {
	return []Tool{
		events.list(ListEvents, "List account events (invoice.paid, customer.created, ...)"),
		events.get(GetEvent, "Retrieve one event by ID"),
	}
}

func taskTools() []Tool {
	return tasks.crud(
		[5]Name{ListTasks, GetTask, CreateTask, UpdateTask, DeleteTask},
		"collection tasks",
		WithProperty("name", "Task name", true),
		WithProperty("action", "phone, letter, review or email", true),
		WithProperty("customer_id", "Customer the task is about", true),
		WithProperty("due_date", "UNIX timestamp the task is due", true),
	)
}

// =============================================================================
// Files
// =============================================================================

type createFileInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Local file under the configured file root to describe; fills name, size and type when they are absent. Not sent upstream."`
	Bag
}

// ErrLocalFilesDisabled is returned for a path argument when no file root
// is configured.
var ErrLocalFilesDisabled = errors.New("local files are disabled; set tools.fileRoot")

// localFile resolves path inside root. Absolute paths must lie under root;
// relative ones are taken from it.
func localFile(root, path string) (string, error) {
	if root == "" {
		return "", invalidArg("path", path, "%w", ErrLocalFilesDisabled)
	}
	rel := path
	if filepath.IsAbs(path) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", invalidArg("path", path, "outside the file root")
		}
		if rel, err = filepath.Rel(abs, path); err != nil {
			return "", invalidArg("path", path, "outside the file root")
		}
	}
	if !filepath.IsLocal(rel) {
		return "", invalidArg("path", path, "outside the file root")
	}
	return rel, nil
}

// describeLocalFile fills name, size and type from the file at path unless
// the caller set them. Reads go through os.Root so symlinks cannot leave
// root. Failures do not say why the file was unreadable.
func describeLocalFile(root, path string, params billing.Params, has func(string) bool) error {
	rel, err := localFile(root, path)
	if err != nil {
		return err
	}
	dir, err := os.OpenRoot(root)
	if err != nil {
		return fmt.Errorf("open file root: %w", err)
	}
	defer dir.Close()

	f, err := dir.Open(rel)
	if err != nil {
		return invalidArg("path", path, "not a readable file")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return invalidArg("path", path, "not a readable file")
	}
	if !has("name") {
		params["name"] = filepath.Base(rel)
	}
	if !has("size") {
		params["size"] = info.Size()
	}
	if !has("type") {
		kind, err := filetype.MatchReader(f)
		if err != nil {
			return invalidArg("path", path, "not a readable file")
		}
		mime := kind.MIME.Value
		if kind == filetype.Unknown || mime == "" {
			mime = "application/octet-stream"
		}
		params["type"] = mime
	}
	return nil
}

func fileTools() []Tool {
	return []Tool{
		files.get(GetFile, "Retrieve file metadata by ID"),
		New(CreateFile, "Register a file (by url) so it can be attached to documents",
			func(ctx context.Context, env Env, in createFileInput) (Result, error) {
				params := in.Without("path")
				if in.Path != "" {
					if err := describeLocalFile(env.FileRoot, in.Path, params, in.Has); err != nil {
						return nil, err
					}
				}
				out, err := env.Client.Create(ctx, billing.Files, params)
				if err != nil {
					return nil, err
				}
				return created(files.singular, out)
			},
			WithProperty("url", "Public URL of the file", true),
			WithProperty("name", "File name", false),
			WithProperty("size", "Size in bytes", false),
			WithProperty("type", "MIME type", false)),
		files.delete(DeleteFile, "Delete a file by ID"),
	}
}
