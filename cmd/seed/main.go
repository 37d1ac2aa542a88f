// Command seed creates groups and, optionally, fake users with posts.
//
//	go run ./cmd/seed -groups cats:Коты,dogs:Собаки -users 5 -posts 20
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"yatube/internal/config"
	"yatube/internal/db"
	"yatube/internal/logging"
	"yatube/internal/models"
	"yatube/internal/services"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/mdobak/go-xerrors"
)

func main() {
	groupsFlag := flag.String("groups", "", "comma separated slug:Title pairs")
	users := flag.Int("users", 0, "number of fake users to create")
	posts := flag.Int("posts", 0, "number of fake posts per user")
	flag.Parse()

	if err := run(*groupsFlag, *users, *posts); err != nil {
		fmt.Fprintln(os.Stderr, xerrors.Sprint(err))
		os.Exit(1)
	}
}

// parseGroups reads "slug:Title,slug2:Title 2". A missing title falls back to the slug.
func parseGroups(raw string) ([]models.Group, error) {
	var groups []models.Group
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slug, title, _ := strings.Cut(part, ":")
		slug = strings.TrimSpace(slug)
		title = strings.TrimSpace(title)
		if slug == "" {
			return nil, xerrors.Newf("group %q has no slug", part)
		}
		if title == "" {
			title = slug
		}
		groups = append(groups, models.Group{Slug: slug, Title: title})
	}
	return groups, nil
}

func run(groupsFlag string, userCount, postCount int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.IsDev(), cfg.LogLevel)

	gdb, err := db.Open(cfg.DBDriver, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	ctx := context.Background()

	parsed, err := parseGroups(groupsFlag)
	if err != nil {
		return err
	}
	groups, err := db.UpsertGroups(ctx, gdb, parsed)
	if err != nil {
		return err
	}
	for _, g := range groups {
		log.Info("Group ready", slog.String("slug", g.Slug), slog.Uint64("id", uint64(g.ID)))
	}
	if userCount == 0 {
		return nil
	}

	// 没指定分组时，帖子随机挂到已有分组上
	if len(groups) == 0 {
		if err := gdb.WithContext(ctx).Find(&groups).Error; err != nil {
			return xerrors.New(err)
		}
	}

	userSvc := services.NewUserService(gdb)
	postSvc := services.NewPostService(gdb, services.NewImageStore(cfg.MediaRoot, cfg.MaxImageBytes), log)
	for i := 0; i < userCount; i++ {
		password := gofakeit.Password(true, true, true, false, false, 12)
		user, err := userSvc.Register(ctx, services.SignupInput{
			Username:  strings.ToLower(gofakeit.Username()),
			Email:     gofakeit.Email(),
			Password:  password,
			Password2: password,
		})
		if _, ok := services.FieldErrors(err); ok {
			log.Warn("Skipping fake user", slog.Any("error", err))
			continue
		}
		if err != nil {
			return err
		}

		for j := 0; j < postCount; j++ {
			in := services.PostInput{Text: gofakeit.Paragraph(1, 3, 12, "\n")}
			if len(groups) > 0 && rand.IntN(3) > 0 {
				in.GroupID = &groups[rand.IntN(len(groups))].ID
			}
			if _, err := postSvc.Create(ctx, user, in); err != nil {
				return err
			}
		}
		log.Info("Fake user created",
			slog.String("username", user.Username),
			slog.String("password", password),
			slog.Int("posts", postCount),
		)
	}
	return nil
}
