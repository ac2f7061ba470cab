package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/openmined/syftnotes/internal/client"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/notestore"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(newNoteCmd())
}

func newNoteCmd() *cobra.Command {
	noteCmd := &cobra.Command{
		Use:     "note",
		Aliases: []string{"notes"},
		Short:   "Edit the local notes",
	}

	noteCmd.AddCommand(
		newNoteNewCmd(),
		newNoteListCmd(),
		newNoteShowCmd(),
		newNoteLogCmd(),
		newNoteTitleCmd(),
		newNoteEditCmd(),
		newNoteMoveCmd(),
		newNoteDeleteCmd(),
		newNoteUndeleteCmd(),
		newNoteAttachCmd(),
		newNoteDetachCmd(),
	)
	return noteCmd
}

// withStore opens the note log of the configured data directory. It does not
// lock the directory, so it works next to a running daemon.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *notestore.Store) error) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := client.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(cmd.Context(), store)
}

// executeOn runs the command built by mk against the current revision of a note.
func executeOn(cmd *cobra.Command, noteID string, mk func(command.Target) command.Command) error {
	return withStore(cmd, func(ctx context.Context, store *notestore.Store) error {
		n, err := store.Get(ctx, noteID)
		if err != nil {
			return err
		}
		res, err := store.Execute(ctx, mk(command.Target{NoteID: noteID, LastRevision: n.Revision}))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	})
}

func printResult(w io.Writer, res *command.Result) {
	if res.Event == nil {
		fmt.Fprintln(w, gray.Render("no change"))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", green.Render(string(res.Event.Type())), cyan.Render(res.Event.NoteID), lightGray.Render(fmt.Sprintf("rev %d", res.Event.Revision)))
}

// readContent returns the --content flag, or the file named by --file where
// "-" reads stdin.
func readContent(cmd *cobra.Command) (string, bool, error) {
	if f := cmd.Flags().Lookup("content"); f != nil && f.Changed {
		return f.Value.String(), true, nil
	}
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return "", false, nil
	}
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), true, nil
}

func addContentFlags(cmd *cobra.Command) {
	cmd.Flags().String("content", "", "Note content")
	cmd.Flags().StringP("file", "f", "", "Read the content from a file, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
}

func newNoteNewCmd() *cobra.Command {
	var path string

	newCmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _, err := readContent(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *notestore.Store) error {
				res, err := store.Execute(ctx, command.CreateNote{
					Target:  command.Target{NoteID: uuid.NewString()},
					Path:    path,
					Title:   args[0],
					Content: content,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	newCmd.Flags().StringVarP(&path, "path", "p", "/", "Folder of the note")
	addContentFlags(newCmd)
	return newCmd
}

func newNoteListCmd() *cobra.Command {
	var all bool

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *notestore.Store) error {
				notes, err := store.Notes(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				shown := 0
				for _, n := range notes {
					if n.Existence() != note.Exists && !all {
						continue
					}
					shown++
					line := fmt.Sprintf("%s  %-24s %s", cyan.Render(n.ID), n.Title, lightGray.Render(n.Path))
					if n.Existence() == note.Removed {
						line = gray.Render(line + " (deleted)")
					}
					fmt.Fprintln(w, line)
				}
				if shown == 0 {
					fmt.Fprintln(w, gray.Render("no notes"))
				}
				return nil
			})
		},
	}

	listCmd.Flags().BoolVarP(&all, "all", "a", false, "Include deleted notes")
	return listCmd
}

type noteHeader struct {
	ID          string            `yaml:"id"`
	Revision    int               `yaml:"revision"`
	Title       string            `yaml:"title"`
	Path        string            `yaml:"path"`
	Deleted     bool              `yaml:"deleted,omitempty"`
	Attachments map[string]string `yaml:"attachments,omitempty"`
}

// formatNote renders a note as yaml front matter followed by its content.
func formatNote(n note.Note) (string, error) {
	h := noteHeader{
		ID:       n.ID,
		Revision: n.Revision,
		Title:    n.Title,
		Path:     n.Path,
		Deleted:  n.Existence() == note.Removed,
	}
	if len(n.Attachments) > 0 {
		h.Attachments = make(map[string]string, len(n.Attachments))
		for name, content := range n.Attachments {
			h.Attachments[name] = humanize.Bytes(uint64(len(content)))
		}
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n")
	b.WriteString(n.Content)
	if n.Content != "" && !strings.HasSuffix(n.Content, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

func newNoteShowCmd() *cobra.Command {
	var revision int

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *notestore.Store) error {
				var n note.Note
				var err error
				if revision > 0 {
					n, err = store.NoteAt(ctx, args[0], revision)
					if err == nil && n.Revision < revision {
						err = fmt.Errorf("note %s has no revision %d", args[0], revision)
					}
				} else {
					n, err = store.Get(ctx, args[0])
				}
				if err != nil {
					return err
				}
				out, err := formatNote(n)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			})
		},
	}

	showCmd.Flags().IntVarP(&revision, "revision", "r", 0, "Show the note as of this revision")
	return showCmd
}

func newNoteLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <id>",
		Short: "Print the history of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *notestore.Store) error {
				events, err := store.Events(ctx, args[0])
				if err != nil {
					return err
				}
				if len(events) == 0 {
					return fmt.Errorf("%w: %s", notestore.ErrNoteNotFound, args[0])
				}
				w := cmd.OutOrStdout()
				for _, e := range events {
					fmt.Fprintf(w, "%s %-18s %s %s\n",
						lightGray.Render(fmt.Sprintf("%4d", e.Revision)),
						green.Render(string(e.Type())),
						gray.Render(humanize.Time(e.CreatedAt)),
						describePayload(e.Payload))
				}
				return nil
			})
		},
	}
}

func describePayload(p note.Payload) string {
	switch p := p.(type) {
	case note.Created:
		return fmt.Sprintf("%q in %s", p.Title, p.Path)
	case note.TitleChanged:
		return strconv.Quote(p.Title)
	case note.ContentChanged:
		return humanize.Bytes(uint64(len(p.Content)))
	case note.Moved:
		return p.Path
	case note.AttachmentAdded:
		return fmt.Sprintf("%s (%s)", p.Name, humanize.Bytes(uint64(len(p.Content))))
	case note.AttachmentDeleted:
		return p.Name
	default:
		return ""
	}
}

func newNoteTitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "title <id> <title>",
		Short: "Change the title of a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.ChangeTitle{Target: t, Title: args[1]}
			})
		},
	}
}

func newNoteEditCmd() *cobra.Command {
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the content of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, ok, err := readContent(cmd)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("one of --content or --file is required")
			}
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.ChangeContent{Target: t, Content: content}
			})
		},
	}

	addContentFlags(editCmd)
	return editCmd
}

func newNoteMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "move <id> <path>",
		Aliases: []string{"mv"},
		Short:   "Move a note to another folder",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.MoveNote{Target: t, Path: args[1]}
			})
		},
	}
}

func newNoteDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.DeleteNote{Target: t}
			})
		},
	}
}

func newNoteUndeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undelete <id>",
		Short: "Restore a deleted note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.UndeleteNote{Target: t}
			})
		},
	}
}

func newNoteAttachCmd() *cobra.Command {
	var name string

	attachCmd := &cobra.Command{
		Use:   "attach <id> <file>",
		Short: "Attach a file to a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read attachment: %w", err)
			}
			if name == "" {
				name = filepath.Base(args[1])
			}
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.AddAttachment{Target: t, Name: name, Content: content}
			})
		},
	}

	attachCmd.Flags().StringVarP(&name, "name", "n", "", "Attachment name, defaults to the file name")
	return attachCmd
}

func newNoteDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <id> <name>",
		Short: "Remove an attachment from a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOn(cmd, args[0], func(t command.Target) command.Command {
				return command.DeleteAttachment{Target: t, Name: args[1]}
			})
		},
	}
}
