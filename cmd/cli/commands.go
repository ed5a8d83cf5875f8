package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/core/services"
	"github.com/the-homeless-god/links/pkg/logging"
)

func (a *app) login(ctx context.Context, args []string) error {
	kc, err := a.state.KeycloakConfig(ctx)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "Keycloak username")
	password := fs.String("password", os.Getenv("LINKS_PASSWORD"), "Keycloak password (default $LINKS_PASSWORD)")
	fs.StringVar(&kc.URL, "keycloak-url", kc.URL, "Keycloak base URL")
	fs.StringVar(&kc.Realm, "realm", kc.Realm, "Keycloak realm")
	fs.StringVar(&kc.ClientID, "client-id", kc.ClientID, "Keycloak client id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.logger.Info().Str("user", logging.Mask(*username)).Str("realm", kc.Realm).Msg("logging in")
	info, err := a.session.Login(ctx, *username, *password, kc)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", info.Username())
	return nil
}

func (a *app) guest(ctx context.Context) error {
	if _, err := a.session.LoginGuest(ctx); err != nil {
		return err
	}
	fmt.Println("Continuing as guest")
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) whoami() error {
	fmt.Printf("Session: %s\n", a.session.State())
	user := a.session.User()
	if user == nil {
		return nil
	}
	fmt.Printf("User:    %s\n", user.Username())
	fmt.Printf("User ID: %s\n", user.UserID())
	if exp := user.ExpiresAt(); exp != nil {
		fmt.Printf("Expires: %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *app) config(ctx context.Context, args []string) error {
	apiURL, err := a.state.APIURL(ctx)
	if err != nil {
		return err
	}
	kc, err := a.state.KeycloakConfig(ctx)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&apiURL, "api-url", apiURL, "links API origin")
	fs.StringVar(&kc.URL, "keycloak-url", kc.URL, "Keycloak base URL")
	fs.StringVar(&kc.Realm, "realm", kc.Realm, "Keycloak realm")
	fs.StringVar(&kc.ClientID, "client-id", kc.ClientID, "Keycloak client id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	changed := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { changed[f.Name] = true })
	if changed["api-url"] {
		if err := a.state.SetAPIURL(ctx, strings.TrimRight(apiURL, "/")); err != nil {
			return err
		}
	}
	if changed["keycloak-url"] || changed["realm"] || changed["client-id"] {
		if err := a.state.SetKeycloakConfig(ctx, kc); err != nil {
			return err
		}
	}

	fmt.Printf("API URL:      %s\n", apiURL)
	fmt.Printf("Keycloak URL: %s\n", kc.URL)
	fmt.Printf("Realm:        %s\n", kc.Realm)
	fmt.Printf("Client ID:    %s\n", kc.ClientID)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	group := fs.String("group", domain.GroupAll, "group to show (all, dev, prod, personal, ...)")
	search := fs.String("search", "", "case-insensitive text to look for in name, url and description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.store.Refresh(ctx); err != nil {
		return err
	}

	a.store.SetGroup(*group)
	a.store.SetSearch(*search)
	links := a.store.View()
	if len(links) == 0 {
		fmt.Println("No links")
		return nil
	}

	origin, err := a.state.APIURL(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGROUP\tSHORT URL\tURL")
	for _, l := range links {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.GroupID, services.ShortURL(origin, l.Name, l.IsPublic), l.URL)
	}
	return w.Flush()
}

type linkFlags struct {
	name        *string
	url         *string
	description *string
	group       *string
	public      *bool
}

func newLinkFlags(fs *flag.FlagSet) linkFlags {
	return linkFlags{
		name:        fs.String("name", "", "link name, used in the short URL"),
		url:         fs.String("url", "", "target URL"),
		description: fs.String("description", "", "free text"),
		group:       fs.String("group", "", "group id"),
		public:      fs.Bool("public", false, "reachable without signing in (/u/ instead of /r/)"),
	}
}

func (f linkFlags) payload() domain.LinkPayload {
	return domain.LinkPayload{
		Name:        *f.name,
		URL:         *f.url,
		Description: *f.description,
		GroupID:     *f.group,
		IsPublic:    *f.public,
	}
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	lf := newLinkFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	payload := lf.payload()
	pending, err := a.state.PendingLink(ctx)
	if err != nil {
		return err
	}
	usedPending := pending != nil && payload.URL == ""
	if usedPending {
		payload.URL = pending.URL
		if payload.Name == "" {
			payload.Name = services.SuggestName(pending.Title)
		}
	}

	link, err := a.store.Create(ctx, payload)
	if link == nil {
		return err
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("link created but list is stale")
	}
	if usedPending {
		if err := a.state.ClearPendingLink(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("clear pending link")
		}
	}
	return a.printShortURL(ctx, *link)
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "id of the link to update")
	current := fs.String("current", "", "name of the link to update, instead of -id")
	lf := newLinkFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	existing, err := a.lookup(ctx, *id, *current)
	if err != nil {
		return err
	}

	payload := existing.Payload()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			payload.Name = *lf.name
		case "url":
			payload.URL = *lf.url
		case "description":
			payload.Description = *lf.description
		case "group":
			payload.GroupID = *lf.group
		case "public":
			payload.IsPublic = *lf.public
		}
	})

	link, err := a.store.Update(ctx, existing.ID, payload)
	if link == nil {
		return err
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("link updated but list is stale")
	}
	return a.printShortURL(ctx, *link)
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "id of the link to delete")
	name := fs.String("name", "", "name of the link to delete, instead of -id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	existing, err := a.lookup(ctx, *id, *name)
	if err != nil {
		return err
	}

	gone, err := a.store.Delete(ctx, existing.ID)
	switch {
	case err == nil:
		fmt.Printf("Deleted %s\n", existing.Name)
		return nil
	case gone:
		fmt.Printf("Deleted %s (server reported: %v)\n", existing.Name, err)
		return nil
	default:
		return err
	}
}

func (a *app) openURL(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("open-url", flag.ContinueOnError)
	name := fs.String("name", "", "link name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	link, err := a.lookup(ctx, "", *name)
	if err != nil {
		return err
	}
	return a.printShortURL(ctx, link)
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "file to write the backup string to (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	encoded, data, err := a.store.Export(ctx)
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Println(encoded)
		return nil
	}
	if err := os.WriteFile(*out, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d links to %s\n", data.Count, *out)
	return nil
}

func (a *app) importLinks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	file := fs.String("file", "", "file holding the backup string (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	var (
		raw []byte
		err error
	)
	if *file == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}

	result, err := a.store.Import(ctx, string(raw))
	if result == nil {
		return err
	}

	fmt.Printf("Imported %d of %d links\n", result.SuccessCount, result.Total)
	shown, hidden := result.Summary(services.MaxShownErrors)
	for _, msg := range shown {
		fmt.Printf("  %s\n", msg)
	}
	if hidden > 0 {
		fmt.Printf("  ... and %d more\n", hidden)
	}
	return err
}

func (a *app) stage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stage", flag.ContinueOnError)
	url := fs.String("url", "", "page URL")
	title := fs.String("title", "", "page title, used to suggest a name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return &domain.ValidationError{Field: "url"}
	}
	if err := a.state.StagePendingLink(ctx, domain.PendingLink{URL: *url, Title: *title}); err != nil {
		return err
	}
	fmt.Println("Staged; run create to save it")
	return nil
}

func (a *app) requireSession() error {
	if a.session.State() != services.Authenticated {
		return fmt.Errorf("%w: run login or guest first", domain.ErrNotAuthenticated)
	}
	return nil
}

// lookup refreshes the collection and finds a link by id, or by name when id is empty.
func (a *app) lookup(ctx context.Context, id, name string) (domain.Link, error) {
	if id == "" && name == "" {
		return domain.Link{}, errors.New("a link id or name is required")
	}
	if err := a.store.Refresh(ctx); err != nil {
		return domain.Link{}, err
	}

	var (
		link domain.Link
		ok   bool
	)
	if id != "" {
		link, ok = a.store.Find(id)
	} else {
		link, ok = a.store.FindByName(name)
	}
	if !ok {
		return domain.Link{}, fmt.Errorf("link %q not found", id+name)
	}
	return link, nil
}

func (a *app) printShortURL(ctx context.Context, link domain.Link) error {
	origin, err := a.state.APIURL(ctx)
	if err != nil {
		return err
	}
	fmt.Println(services.ShortURL(origin, link.Name, link.IsPublic))
	return nil
}
