package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"socialnet/pkg/client"
)

// API is the part of the HTTP client the REPL drives.
type API interface {
	Register(ctx context.Context, name, email, password string) (client.User, error)
	Login(ctx context.Context, email, password string) (client.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (client.User, error)
	GetPost(ctx context.Context, postId string) (client.Post, error)
	CreatePost(ctx context.Context, content string, images []client.Image) (client.Post, error)
	Comment(ctx context.Context, postId, text string) (client.Post, error)
	ToggleLike(ctx context.Context, postId string) (client.LikeResult, error)
	RequireSession() (client.Session, error)
}

// Pager loads the feed one page at a time.
type Pager interface {
	Next(ctx context.Context) ([]client.Post, error)
	HasMore() bool
	Reset()
}

type App struct {
	api   API
	pager Pager
	in    *bufio.Reader
	out   io.Writer
}

func NewApp(api API, pager Pager, in io.Reader, out io.Writer) *App {
	return &App{api: api, pager: pager, in: bufio.NewReader(in), out: out}
}

// SessionExpired is meant as the client's OnUnauthorized hook.
func SessionExpired(out io.Writer) func() {
	return func() {
		fmt.Fprintln(out, errorStyle.Render("session expired, please log in again"))
	}
}

// Run reads commands until EOF or exit.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, titleStyle.Render("socialnet")+" "+mutedStyle.Render("type 'help' for commands"))
	for {
		fmt.Fprint(a.out, a.status()+"> ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			fmt.Fprintln(a.out, "bye")
			return
		}
		if err := a.Exec(ctx, fields[0], fields[1:]); err != nil {
			a.fail(err)
		}
	}
}

func (a *App) status() string {
	session, err := a.api.RequireSession()
	if err != nil {
		return mutedStyle.Render("(guest) ")
	}
	return mutedStyle.Render("(@" + session.User.Username + ") ")
}

var errUsage = errors.New("usage")

// Exec runs one command. Everything except help, register and login needs a session.
func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		a.help()
		return nil
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	}

	if _, err := a.api.RequireSession(); err != nil {
		return err
	}

	switch cmd {
	case "logout":
		return a.logout(ctx)
	case "me":
		return a.me(ctx)
	case "feed":
		a.pager.Reset()
		return a.more(ctx)
	case "more":
		return a.more(ctx)
	case "post":
		return a.post(ctx, args)
	case "show":
		if len(args) != 1 {
			return fmt.Errorf("%w: show <post-id>", errUsage)
		}
		return a.show(ctx, args[0])
	case "comment":
		if len(args) < 1 {
			return fmt.Errorf("%w: comment <post-id> [text]", errUsage)
		}
		return a.comment(ctx, args[0], strings.Join(args[1:], " "))
	case "like":
		if len(args) != 1 {
			return fmt.Errorf("%w: like <post-id>", errUsage)
		}
		return a.like(ctx, args[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) help() {
	fmt.Fprintln(a.out, `commands:
  register | login | logout | me
  feed                 first page of the feed
  more                 next page
  post [image...]      write a post, optionally with image files
  show <id>            a post with its comments
  comment <id> [text]  comment on a post
  like <id>            like or unlike a post
  exit`)
}

func (a *App) register(ctx context.Context) error {
	name, err := prompt(a.in, a.out, "Name")
	if err != nil {
		return err
	}
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	user, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("welcome, @%s", user.Username))
	return nil
}

func (a *App) login(ctx context.Context) error {
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	user, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("logged in as @%s", user.Username))
	return nil
}

func (a *App) logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.pager.Reset()
	if err != nil {
		return err
	}
	a.ok("logged out")
	return nil
}

func (a *App) me(ctx context.Context) error {
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n%s\n", authorStyle.Render(user.Name), mutedStyle.Render("@"+user.Username), user.Email)
	return nil
}

func (a *App) more(ctx context.Context) error {
	if !a.pager.HasMore() {
		fmt.Fprintln(a.out, mutedStyle.Render("no more posts"))
		return nil
	}
	posts, err := a.pager.Next(ctx)
	if err != nil {
		return err
	}
	for _, p := range posts {
		a.renderPost(p, false)
	}
	if !a.pager.HasMore() {
		fmt.Fprintln(a.out, mutedStyle.Render("end of feed"))
	}
	return nil
}

func (a *App) post(ctx context.Context, paths []string) error {
	images := make([]client.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		images = append(images, client.Image{Filename: filepath.Base(p), Data: data})
	}

	content, err := promptMultiline(a.in, a.out, "What's on your mind?")
	if err != nil {
		return err
	}

	post, err := a.api.CreatePost(ctx, content, images)
	if err != nil {
		return err
	}
	a.pager.Reset()
	a.ok("posted " + post.Id)
	return nil
}

func (a *App) show(ctx context.Context, id string) error {
	post, err := a.api.GetPost(ctx, id)
	if err != nil {
		return err
	}
	a.renderPost(post, true)
	return nil
}

func (a *App) comment(ctx context.Context, id, text string) error {
	if text == "" {
		var err error
		if text, err = prompt(a.in, a.out, "Comment"); err != nil {
			return err
		}
	}
	post, err := a.api.Comment(ctx, id, text)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("commented (%d comments)", post.CommentCount))
	return nil
}

func (a *App) like(ctx context.Context, id string) error {
	res, err := a.api.ToggleLike(ctx, id)
	if err != nil {
		return err
	}
	verb := "unliked"
	if res.Liked {
		verb = "liked"
	}
	a.ok(fmt.Sprintf("%s (%d likes)", verb, res.LikeCount))
	return nil
}

func (a *App) renderPost(p client.Post, withComments bool) {
	var b strings.Builder
	if p.User != nil {
		b.WriteString(authorStyle.Render(p.User.Name) + " " + mutedStyle.Render("@"+p.User.Username) + "\n")
	}
	if p.Content != "" {
		b.WriteString(p.Content + "\n")
	}
	for _, img := range p.Images {
		b.WriteString(mutedStyle.Render("[image] "+img) + "\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s  %d likes  %d comments  %s",
		p.Id, p.LikeCount, p.CommentCount, p.CreatedAt.Local().Format("Jan 2 15:04"))))
	fmt.Fprintln(a.out, postStyle.Render(b.String()))

	if withComments {
		for _, c := range p.Comments {
			fmt.Fprintln(a.out, commentStyle.Render("@"+c.Username+": "+c.Text))
		}
	}
}

func (a *App) ok(msg string) {
	fmt.Fprintln(a.out, successStyle.Render(msg))
}

func (a *App) fail(err error) {
	msg := err.Error()
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNoSession):
		msg = "please register or login first"
	case errors.As(err, &apiErr):
		msg = apiErr.Message
	}
	fmt.Fprintln(a.out, errorStyle.Render(msg))
}
