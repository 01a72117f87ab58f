package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/motivlab/platform-backend/internal/api/http"
	"github.com/motivlab/platform-backend/internal/attempt"
	"github.com/motivlab/platform-backend/internal/auth"
	"github.com/motivlab/platform-backend/internal/catalog"
	"github.com/motivlab/platform-backend/internal/chat"
	"github.com/motivlab/platform-backend/internal/config"
	"github.com/motivlab/platform-backend/internal/db"
	"github.com/motivlab/platform-backend/internal/logging"
	"github.com/motivlab/platform-backend/internal/rbac"
	"github.com/motivlab/platform-backend/internal/telemetry"
	"github.com/motivlab/platform-backend/internal/users"
)

// userResolver adapts the users store to the auth middleware contract.
type userResolver struct{ store *users.SQLStore }

func (r userResolver) Resolve(ctx context.Context, email string) (auth.Identity, error) {
	u, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}, nil
}

func main() {
	cfg := config.FromEnv()

	log, err := logging.New(cfg.LogDev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}

	// --- Stores & services ---
	userStore := users.NewSQLStore(dbh)
	questionStore := catalog.NewQuestionStore(dbh)
	surveyItemStore := catalog.NewSurveyItemStore(dbh)
	events := telemetry.NewEventRepo(dbh, cfg.SiteID, log)

	engine := attempt.NewEngine(attempt.NewSQLStore(dbh), log, events)
	insts := api.Instruments{
		Questions:    questionStore,
		SurveyItems:  surveyItemStore,
		QuizMaxItems: cfg.QuizMaxQuestions,
	}

	chatSvc := chat.NewService(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModel, events, log)

	authSvc := auth.NewService(cfg.JWTSecret, time.Duration(cfg.JWTExpiresMin)*time.Minute)
	cookie := api.SessionCookie{
		Name:   cfg.CookieName,
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: time.Duration(cfg.JWTExpiresMin) * time.Minute,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public auth surface
	r.Post("/auth/signup", api.SignupHandler(userStore, authSvc, cookie, log))
	r.Post("/auth/login", api.LoginHandler(userStore, authSvc, cookie, log))
	r.Post("/auth/logout", api.LogoutHandler(cookie))

	// Authenticated surface
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc, cfg.CookieName, userResolver{store: userStore}))

		pr.Get("/auth/me", api.MeHandler(userStore, log))
		pr.Post("/auth/change-password", api.ChangePasswordHandler(userStore, log))

		pr.With(rbac.Require("demographics:write")).
			Post("/demographics/me", api.SaveDemographicsHandler(userStore, log))

		pr.With(rbac.Require("chat:send")).
			Post("/chat", api.ChatHandler(chatSvc, log))

		// Quiz flow
		pr.With(rbac.Require("attempt:state")).
			Get("/quiz/{quizID}/state", api.QuizStateHandler(engine, insts, log))
		pr.With(rbac.Require("attempt:answer")).
			Post("/quiz/{quizID}/answer", api.QuizAnswerHandler(engine, insts, log))

		// Survey flow
		pr.With(rbac.Require("attempt:state")).
			Get("/surveys/{stage}/state", api.SurveyStateHandler(engine, insts, log))
		pr.With(rbac.Require("attempt:shown")).
			Post("/surveys/{stage}/record_shown", api.SurveyRecordShownHandler(engine, insts, log))
		pr.With(rbac.Require("attempt:answer")).
			Post("/surveys/{stage}/submit", api.SurveySubmitHandler(engine, insts, log))

		// Admin catalog CRUD
		pr.With(rbac.Require("catalog:manage")).
			Post("/questions", api.CreateQuestionHandler(questionStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Get("/questions", api.ListQuestionsHandler(questionStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Put("/questions/{id}", api.UpdateQuestionHandler(questionStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Delete("/questions/{id}", api.DeleteQuestionHandler(questionStore, log))

		pr.With(rbac.Require("catalog:manage")).
			Post("/surveys/items", api.CreateSurveyItemHandler(surveyItemStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Get("/surveys/items", api.ListSurveyItemsHandler(surveyItemStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Put("/surveys/items/{id}", api.UpdateSurveyItemHandler(surveyItemStore, log))
		pr.With(rbac.Require("catalog:manage")).
			Delete("/surveys/items/{id}", api.DeleteSurveyItemHandler(surveyItemStore, log))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
