package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/contact"
)

// Subscriber is a newsletter sign-up. Early subscribers earn a one-off
// discount on their first order.
type Subscriber struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func NormalizeEmail(email string) string {
	return contact.NormalizeEmail(email)
}

type Repository interface {
	// Add is idempotent: re-subscribing keeps the original sign-up time.
	Add(ctx context.Context, email string, at time.Time) (Subscriber, error)
	// SubscribedBefore reports whether email signed up strictly before cutoff.
	SubscribedBefore(ctx context.Context, email string, cutoff time.Time) (bool, error)
}

type InMemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

func NewInMemoryRepository(seed []Subscriber) *InMemoryRepository {
	r := &InMemoryRepository{subs: make(map[string]Subscriber, len(seed))}
	for _, s := range seed {
		s.Email = NormalizeEmail(s.Email)
		r.subs[s.Email] = s
	}
	return r
}

func (r *InMemoryRepository) Add(ctx context.Context, email string, at time.Time) (Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[email]; ok {
		return s, nil
	}
	s := Subscriber{Email: email, CreatedAt: at}
	r.subs[email] = s
	return s, nil
}

func (r *InMemoryRepository) SubscribedBefore(ctx context.Context, email string, cutoff time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[NormalizeEmail(email)]
	return ok && s.CreatedAt.Before(cutoff), nil
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	addSubscriberQuery = `
		INSERT INTO subscribers (email, created_at) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING email, created_at`
	subscribedBeforeQuery = `SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1 AND created_at < $2)`
)

func (r *PostgresRepository) Add(ctx context.Context, email string, at time.Time) (Subscriber, error) {
	var s Subscriber
	err := r.db.QueryRowContext(ctx, addSubscriberQuery, email, at).Scan(&s.Email, &s.CreatedAt)
	return s, err
}

func (r *PostgresRepository) SubscribedBefore(ctx context.Context, email string, cutoff time.Time) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, subscribedBeforeQuery, NormalizeEmail(email), cutoff).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return ok, err
}

type Handler struct {
	repo Repository
	now  func() time.Time
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/subscribe", h.subscribe)
}

type subscribeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) subscribe(c *fiber.Ctx) error {
	payload := new(subscribeRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	email := NormalizeEmail(payload.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "a valid email is required"))
	}
	s, err := h.repo.Add(c.UserContext(), email, h.now())
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "subscribed", "email": s.Email})
}
