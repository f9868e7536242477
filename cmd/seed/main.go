package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/trainhub-backend/internal/app"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type fixtures struct {
	Users   []userFixture   `yaml:"users"`
	Courses []courseFixture `yaml:"courses"`
}

type userFixture struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"fullName"`
	Role     string `yaml:"role"`
}

type courseFixture struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Trainers    []string         `yaml:"trainers"`
	Trainees    []string         `yaml:"trainees"`
	Start       bool             `yaml:"start"`
	Subjects    []subjectFixture `yaml:"subjects"`
}

type subjectFixture struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Tasks       []taskFixture `yaml:"tasks"`
}

type taskFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	DueInDays   int    `yaml:"dueInDays"`
}

func main() {
	var file string
	var dryRun bool
	flag.StringVar(&file, "file", "cmd/seed/fixtures.example.yaml", "fixtures YAML file")
	flag.BoolVar(&dryRun, "dry-run", false, "parse the fixtures and print what would be created")
	flag.Parse()

	fx, err := loadFixtures(file)
	if err != nil {
		fmt.Printf("load fixtures: %v\n", err)
		os.Exit(1)
	}
	if dryRun {
		fmt.Printf("[dry-run] %d users, %d courses\n", len(fx.Users), len(fx.Courses))
		for _, c := range fx.Courses {
			fmt.Printf("[dry-run] course %q: %d subjects, %d trainees, start=%v\n", c.Title, len(c.Subjects), len(c.Trainees), c.Start)
		}
		return
	}

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := seed(ctx, application, fx); err != nil {
		application.Log.Error("seed failed", "error", err)
		application.Close()
		os.Exit(1)
	}
	application.Log.Info("seed complete", "users", len(fx.Users), "courses", len(fx.Courses))
}

func loadFixtures(path string) (*fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fx, nil
}

func seed(ctx context.Context, a *app.App, fx *fixtures) error {
	ids, admin, err := seedUsers(ctx, a, fx.Users)
	if err != nil {
		return err
	}
	if admin == uuid.Nil {
		return errors.New("fixtures need at least one ADMIN user to own the courses")
	}
	// Courses are created through the services so enrollment and start go through the aggregate.
	actx := ctxutil.WithActor(ctx, &ctxutil.Actor{UserID: admin, Role: string(user.RoleAdmin)})
	for _, cf := range fx.Courses {
		if err := seedCourse(actx, a, cf, ids); err != nil {
			return fmt.Errorf("course %q: %w", cf.Title, err)
		}
	}
	return nil
}

// seedUsers inserts missing users and returns every fixture email mapped to its id.
func seedUsers(ctx context.Context, a *app.App, users []userFixture) (map[string]uuid.UUID, uuid.UUID, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ids := make(map[string]uuid.UUID, len(users))
	admin := uuid.Nil
	for _, uf := range users {
		role := user.ParseRole(uf.Role)
		if !role.Valid() {
			return nil, uuid.Nil, fmt.Errorf("user %s: unknown role %q", uf.Email, uf.Role)
		}
		existing, err := a.Repos.User.GetByEmail(dbc, uf.Email)
		if err != nil {
			return nil, uuid.Nil, err
		}
		u := existing
		if u == nil {
			hash, err := services.HashPassword(uf.Password)
			if err != nil {
				return nil, uuid.Nil, err
			}
			created, err := a.Repos.User.Create(dbc, []*user.User{{
				Email:    uf.Email,
				Password: hash,
				FullName: strings.TrimSpace(uf.FullName),
				Role:     role,
				IsActive: true,
			}})
			if err != nil {
				return nil, uuid.Nil, fmt.Errorf("user %s: %w", uf.Email, err)
			}
			u = created[0]
			a.Log.Info("seeded user", "email", u.Email, "role", u.Role)
		}
		ids[strings.ToLower(strings.TrimSpace(uf.Email))] = u.ID
		if admin == uuid.Nil && u.Role == user.RoleAdmin && u.IsActive {
			admin = u.ID
		}
	}
	return ids, admin, nil
}

func seedCourse(ctx context.Context, a *app.App, cf courseFixture, ids map[string]uuid.UUID) error {
	course, err := a.Services.Course.Create(ctx, services.CreateCourseInput{Title: cf.Title, Description: cf.Description})
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, sf := range cf.Subjects {
		subj, err := a.Services.Subject.Create(ctx, course.ID, services.CreateSubjectInput{Title: sf.Title, Description: sf.Description})
		if err != nil {
			return fmt.Errorf("subject %q: %w", sf.Title, err)
		}
		for _, tf := range sf.Tasks {
			in := services.CreateTaskInput{Title: tf.Title, Description: tf.Description}
			if tf.DueInDays > 0 {
				due := now.AddDate(0, 0, tf.DueInDays)
				in.DueDate = &due
			}
			if _, err := a.Services.Task.Create(ctx, subj.ID, in); err != nil {
				return fmt.Errorf("task %q: %w", tf.Title, err)
			}
		}
	}

	trainers, err := lookup(ids, cf.Trainers)
	if err != nil {
		return err
	}
	if len(trainers) > 0 {
		if _, err := a.Services.Course.AssignTrainers(ctx, course.ID, trainers); err != nil {
			return fmt.Errorf("assign trainers: %w", err)
		}
	}
	trainees, err := lookup(ids, cf.Trainees)
	if err != nil {
		return err
	}
	if len(trainees) > 0 {
		if _, err := a.Services.Course.Enroll(ctx, course.ID, trainees, false); err != nil {
			return fmt.Errorf("enroll: %w", err)
		}
	}
	if cf.Start {
		if _, err := a.Services.Course.Start(ctx, course.ID); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	a.Log.Info("seeded course", "course_id", course.ID, "title", course.Title, "subjects", len(cf.Subjects), "trainees", len(trainees))
	return nil
}

func lookup(ids map[string]uuid.UUID, emails []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(emails))
	for _, e := range emails {
		id, ok := ids[strings.ToLower(strings.TrimSpace(e))]
		if !ok {
			return nil, fmt.Errorf("%s is not a fixture user", e)
		}
		out = append(out, id)
	}
	return out, nil
}
