package logobs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/zoolog/internal/capture"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
)

const shellHelp = `Commands:
  animal <id or name>     choose the animal (id in list mode, name in free text mode)
  date <YYYY-MM-DD>       observation date, defaults to today
  mode <audio|text>       input mode
  text <observation>      narrative for text mode
  record | stop | reset   control the microphone
  emergency <on|off>      mark the observation as an emergency
  attach <kind> <path>    attach a file, kind is animal, enclosure or emergency
  detach <id>             remove an attachment
  process                 transcribe and build the checklist
  set <field> <value>     edit a checklist field
  back                    return from review to input
  submit                  save the observation
  gate <path>             attach the locked-gate photo after submitting
  finish                  complete the safety check
  show                    print the current state
  quit                    leave, discarding an unsaved entry`

// sniffLen is what http.DetectContentType looks at
const sniffLen = 512

// shell drives one capture session from line-oriented input
type shell struct {
	session *capture.Session
	lang    string
	loc     *time.Location
	out     io.Writer
}

// run reads commands until quit, EOF or a completed session
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	sh.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			sh.prompt()
			continue
		}
		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := sh.exec(ctx, name, arg); err != nil {
			fmt.Fprintf(sh.out, "error: %s (%v)\n", capture.UserMessage(err, sh.lang), err)
		}
		if sh.session.Snapshot().Lifecycle == capture.LifecycleCompleted {
			return nil
		}
		sh.prompt()
	}
	return scanner.Err()
}

func (sh *shell) prompt() {
	snap := sh.session.Snapshot()
	subject := snap.Subject.Name
	if subject == "" {
		subject = "-"
	}
	fmt.Fprintf(sh.out, "[%s %s %s] > ", subject, snap.Phase, snap.Lifecycle)
}

func (sh *shell) exec(ctx context.Context, name, arg string) error {
	s := sh.session
	switch name {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
		return nil
	case "show":
		sh.show()
		return nil
	case "animal":
		if s.Snapshot().AnimalSelection == capture.SelectFromList {
			return s.SelectAnimal(ctx, arg)
		}
		return s.SetSubject(arg)
	case "date":
		d, err := time.ParseInLocation(time.DateOnly, arg, sh.loc)
		if err != nil {
			return usage("date expects YYYY-MM-DD")
		}
		return s.SetObservationDate(d)
	case "mode":
		return s.SetInputMode(capture.InputMode(arg))
	case "text":
		return s.SetNarrative(arg)
	case "record":
		return sh.notice(s.StartRecording(ctx))
	case "stop":
		return sh.notice(s.StopRecording())
	case "reset":
		return sh.notice(s.ResetRecording())
	case "emergency":
		on, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		return s.SetEmergency(on)
	case "attach":
		kind, path, _ := strings.Cut(arg, " ")
		a, err := attachmentFromFile(capture.AttachmentKind(kind), strings.TrimSpace(path))
		if err != nil {
			return err
		}
		if err := s.AddAttachment(a); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "attached %s as %s\n", a.Name, a.ID)
		return nil
	case "detach":
		return s.RemoveAttachment(arg)
	case "process":
		fmt.Fprintln(sh.out, i18n.T(sh.lang, i18n.MsgProcessingAudio))
		if err := s.ProcessInput(ctx); err != nil {
			return err
		}
		_ = sh.notice(nil)
		sh.showForm()
		return nil
	case "set":
		field, value, _ := strings.Cut(arg, " ")
		return setField(s, field, strings.TrimSpace(value))
	case "back":
		return s.Back()
	case "submit":
		receipt, err := s.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "%s (id %s)\n", i18n.T(sh.lang, receipt.Message), receipt.ObservationID)
		for _, w := range receipt.Warnings {
			fmt.Fprintf(sh.out, "warning: %s\n", i18n.T(sh.lang, w))
		}
		if receipt.SafetyCheckRequired {
			fmt.Fprintln(sh.out, i18n.T(sh.lang, i18n.MsgGatePhotoRequired))
		}
		return nil
	case "gate":
		a, err := attachmentFromFile(capture.AttachmentGate, arg)
		if err != nil {
			return err
		}
		return sh.notice(s.AttachGatePhoto(ctx, a))
	case "finish":
		return sh.notice(s.Finish())
	default:
		return usage(fmt.Sprintf("unknown command %q, type help", name))
	}
}

// notice prints the session notice after a successful step
func (sh *shell) notice(err error) error {
	if err != nil {
		return err
	}
	if id := sh.session.Snapshot().Notice; id != "" {
		fmt.Fprintln(sh.out, i18n.T(sh.lang, id))
	}
	return nil
}

func (sh *shell) show() {
	snap := sh.session.Snapshot()
	fmt.Fprintf(sh.out, "animal:     %s\n", snap.Subject.Name)
	fmt.Fprintf(sh.out, "date:       %s\n", snap.Date)
	fmt.Fprintf(sh.out, "input:      %s (%s)\n", snap.InputMode, snap.Recording)
	if snap.Narrative != "" {
		fmt.Fprintf(sh.out, "narrative:  %s\n", snap.Narrative)
	}
	if snap.Transcript != "" {
		fmt.Fprintf(sh.out, "transcript: %s\n", snap.Transcript)
	}
	fmt.Fprintf(sh.out, "emergency:  %t\n", snap.Emergency)
	for _, a := range snap.Attachments {
		fmt.Fprintf(sh.out, "  %s  %-9s %s (%d bytes)\n", a.ID, a.Kind, a.Name, a.Size)
	}
	sh.showForm()
}

func (sh *shell) showForm() {
	snap := sh.session.Snapshot()
	if snap.Form == nil {
		return
	}
	raw, err := json.Marshal(snap.Form)
	if err != nil {
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(sh.out, "  %-34s %v\n", name, fields[name])
	}
}

func setField(s *capture.Session, field, value string) error {
	if isBool, _ := capture.IsBoolField(field); isBool {
		b, err := parseSwitch(value)
		if err != nil {
			return err
		}
		return s.UpdateFormField(field, b)
	}
	return s.UpdateFormField(field, value)
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "yes", "true", "y":
		return true, nil
	case "off", "no", "false", "n":
		return false, nil
	}
	return false, usage("expected on/off or yes/no")
}

// attachmentFromFile builds a handle for a local file; content is read only
// on upload
func attachmentFromFile(kind capture.AttachmentKind, path string) (*capture.Attachment, error) {
	if path == "" {
		return nil, usage("a file path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if info.IsDir() {
		return nil, usage(path + " is a directory")
	}
	contentType, err := detectContentType(path)
	if err != nil {
		return nil, err
	}
	return capture.NewAttachment(kind, path, contentType, info.Size(), capture.FileSource(path)), nil
}

// detectContentType uses the extension and falls back to sniffing the header
func detectContentType(path string) (string, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return "", errors.New(err).
				Component("cli").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		defer func() { _ = f.Close() }()
		head := make([]byte, sniffLen)
		n, _ := io.ReadFull(f, head)
		contentType = http.DetectContentType(head[:n])
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType, nil
}

func usage(msg string) error {
	return errors.Newf("%s", msg).
		Component("cli").
		Category(errors.CategoryValidation).
		Build()
}
