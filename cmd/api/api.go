package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"quill/docs"
	"quill/internal/auth"
	"quill/internal/domain/storage"
	"quill/internal/domain/users"
	"quill/internal/mailer"
	"quill/internal/ratelimiter"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	cld           *cloudinary.Cloudinary
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   *ratelimiter.FixedWindowRateLimiter
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	mail        mailConfig
	frontendURL string
	auth        authConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	resetExp  time.Duration
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.Route("/authentication", func(r chi.Router) {
			r.Post("/user", app.registerUserHandler)
			r.Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
			r.Post("/forgot-password", app.requestResetPasswordHandler)
			r.Patch("/reset-password", app.resetPasswordHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/logout", app.logoutHandler)
			r.Get("/profile", app.getProfileHandler)
			r.Put("/profile", app.updateProfileHandler)
			r.Put("/password", app.changePasswordHandler)

			// admin-only user management
			r.Group(func(r chi.Router) {
				r.Use(app.RequireRole(users.RoleAdmin))
				r.Get("/", app.listUsersHandler)
				r.Get("/{userID}", app.getUserHandler)
				r.Put("/{userID}/role", app.updateUserRoleHandler)
				r.Delete("/{userID}", app.deleteUserHandler)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			// reads tolerate anonymous callers; the policy decides per post
			r.Group(func(r chi.Router) {
				r.Use(app.OptionalAuthTokenMiddleware)
				r.Get("/", app.listPostsHandler)
				r.Get("/{postID}", app.getPostHandler)
				r.Get("/slug/{slug}", app.getPostBySlugHandler)
				r.Get("/author/{authorID}", app.listPostsByAuthorHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.With(app.RequireRole(users.RoleAdmin, users.RoleAuthor)).Post("/", app.createPostHandler)
				r.Patch("/{postID}", app.updatePostHandler)
				r.Delete("/{postID}", app.deletePostHandler)
				r.Post("/{postID}/featured-image", app.uploadFeaturedImageHandler)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", app.listCategoriesHandler)
			r.Get("/{categoryID}", app.getCategoryHandler)
			r.Get("/slug/{slug}", app.getCategoryBySlugHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.With(app.RequireRole(users.RoleAdmin, users.RoleAuthor)).Post("/", app.createCategoryHandler)
				r.With(app.RequireRole(users.RoleAdmin)).Put("/{categoryID}", app.updateCategoryHandler)
				r.With(app.RequireRole(users.RoleAdmin)).Delete("/{categoryID}", app.deleteCategoryHandler)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", app.listTagsHandler)
			r.Get("/{tagID}", app.getTagHandler)
			r.Get("/slug/{slug}", app.getTagBySlugHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.With(app.RequireRole(users.RoleAdmin, users.RoleAuthor)).Post("/", app.createTagHandler)
				r.With(app.RequireRole(users.RoleAdmin)).Put("/{tagID}", app.updateTagHandler)
				r.With(app.RequireRole(users.RoleAdmin)).Delete("/{tagID}", app.deleteTagHandler)
			})
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
