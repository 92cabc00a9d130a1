package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-authgate/speaknative/internal/apiclient"
	"github.com/go-authgate/speaknative/internal/apierror"
	"github.com/go-authgate/speaknative/internal/refresh"
	"github.com/go-authgate/speaknative/internal/tokenstore"
	"github.com/go-authgate/speaknative/tui"
)

// operations are the learning calls requested on the command line. They run
// once, as soon as a session exists.
type operations struct {
	fix       *string
	translate *string
	from      *string
	to        *string
	define    *string
	sentence  *string
}

func registerOperationFlags(fs *flag.FlagSet) *operations {
	return &operations{
		fix:       fs.String("fix", "", "check a phrase for grammar and style"),
		translate: fs.String("translate", "", "translate a text"),
		from:      fs.String("from", apiclient.DefaultSourceLanguage, "source language for -translate"),
		to:        fs.String("to", apiclient.DefaultTargetLanguage, "target language for -translate"),
		define:    fs.String("define", "", "define a word"),
		sentence:  fs.String("context", "", "sentence the -define word appears in"),
	}
}

func (o *operations) empty() bool {
	return *o.fix == "" && *o.translate == "" && *o.define == ""
}

// session drives one process's sign-in state on top of an API client.
type session struct {
	client *apiclient.Client
	store  tokenstore.Store
	d      tui.Displayer
	log    *slog.Logger

	mu   sync.Mutex
	user *apiclient.SessionUser
	// userToken is the access token user was loaded with.
	userToken string

	// endedC receives a value whenever a failed refresh ends the session, so a
	// long-running caller can send the user back to sign-in.
	endedC chan struct{}
}

// newSession builds the API client for store with the refresh hooks routed to d.
// jar may be nil, in which case the client keeps its own.
func newSession(
	cfg *config,
	store tokenstore.Store,
	jar http.CookieJar,
	d tui.Displayer,
	log *slog.Logger,
) (*session, error) {
	s := &session{store: store, d: d, log: log, endedC: make(chan struct{}, 1)}
	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Store:   store,
		Jar:     jar,
		Timeout: cfg.RequestTimeout,
		Logger:  log,
		Hooks: refresh.Hooks{
			OnRefreshStart: d.Refreshing,
			OnRefreshed:    d.Refreshed,
			OnSessionEnded: s.ended,
		},
	})
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *session) ended(err error) {
	s.setUser(nil, "")
	s.d.SessionEnded(err)
	select {
	case s.endedC <- struct{}{}:
	default:
	}
}

func (s *session) setUser(u *apiclient.SessionUser, token string) {
	s.mu.Lock()
	s.user, s.userToken = u, token
	s.mu.Unlock()
}

func (s *session) currentUser() *apiclient.SessionUser {
	u, _ := s.profile()
	return u
}

func (s *session) profile() (*apiclient.SessionUser, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.userToken
}

func (s *session) signedIn() bool {
	return s.currentUser() != nil
}

// restore rehydrates the profile from whatever token the store holds.
func (s *session) restore(ctx context.Context) bool {
	if s.store.Cached() == "" {
		s.d.SessionMissing()
		return false
	}
	user, err := s.client.Me(ctx)
	if err != nil {
		if !errors.Is(err, refresh.ErrSessionTerminated) {
			s.d.APICallFailed(err)
		}
		return false
	}
	s.setUser(user, s.store.Cached())
	s.d.SessionRestored(displayName(user))
	return true
}

// reload re-reads the store after another process changed it and reports the
// outcome only when the signed-in user actually changed. The profile is only
// fetched again when the token differs from the one it was loaded with.
func (s *session) reload(ctx context.Context) {
	token, err := s.store.Get(ctx)
	if err != nil {
		s.log.Warn("failed to read session", slog.Any("error", err))
		return
	}
	before, loadedWith := s.profile()
	if token == "" {
		s.setUser(nil, "")
		if before != nil {
			s.d.SessionMissing()
		}
		return
	}
	if before != nil && token == loadedWith {
		return
	}
	user, err := s.client.Me(ctx)
	if err != nil {
		if !errors.Is(err, refresh.ErrSessionTerminated) {
			s.d.APICallFailed(err)
		}
		return
	}
	s.setUser(user, s.store.Cached())
	if before == nil || before.ID != user.ID {
		s.d.SignedIn(displayName(user))
	}
}

func (s *session) login(ctx context.Context, email, password string) error {
	s.d.LoginStarted(email)
	user, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.d.LoginFailed(err)
		return err
	}
	s.setUser(user, s.store.Cached())
	s.d.SignedIn(displayName(user))
	return nil
}

func (s *session) logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	s.setUser(nil, "")
	if err != nil {
		s.d.APICallFailed(err)
		return err
	}
	s.d.SessionMissing()
	return nil
}

// perform runs the requested operations in order and stops at the first
// failure that ends the session.
func (s *session) perform(ctx context.Context, ops *operations) error {
	type call struct {
		op  string
		arg string
		fn  func() (string, error)
	}
	calls := []call{
		{"fix", *ops.fix, func() (string, error) {
			r, err := s.client.Fix(ctx, *ops.fix)
			if err != nil {
				return "", err
			}
			return formatFix(r), nil
		}},
		{"translate", *ops.translate, func() (string, error) {
			r, err := s.client.Translate(ctx, *ops.translate, *ops.from, *ops.to)
			if err != nil {
				return "", err
			}
			return r.PrimaryTranslation, nil
		}},
		{"define", *ops.define, func() (string, error) {
			r, err := s.client.Define(ctx, *ops.define, *ops.sentence)
			if err != nil {
				return "", err
			}
			return formatDefinition(r), nil
		}},
	}

	var errs []error
	for _, c := range calls {
		if c.arg == "" {
			continue
		}
		text, err := c.fn()
		if err != nil {
			if apierror.Classify(err) == apierror.KindSessionTerminated {
				return err
			}
			s.d.APICallFailed(fmt.Errorf("%s: %w", c.op, err))
			errs = append(errs, err)
			continue
		}
		s.d.Result(c.op, text)
	}
	return errors.Join(errs...)
}

func displayName(u *apiclient.SessionUser) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func formatFix(r *apiclient.FixResult) string {
	if r.IsCorrect {
		return r.CorrectedPhrase + " (already correct)"
	}
	var b strings.Builder
	b.WriteString(r.CorrectedPhrase)
	for _, e := range r.GrammarErrors {
		fmt.Fprintf(&b, "\n  %s: %q -> %q", e.ErrorType, e.Incorrect, e.Correct)
	}
	return b.String()
}

func formatDefinition(r *apiclient.DefineResult) string {
	if len(r.Definitions) == 0 {
		return r.Word + ": no definition found"
	}
	d := r.Definitions[0]
	if d.PartOfSpeech == "" {
		return fmt.Sprintf("%s: %s", r.Word, d.Definition)
	}
	return fmt.Sprintf("%s (%s): %s", r.Word, d.PartOfSpeech, d.Definition)
}
