package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

const (
	defaultTicketCategory = "General"
	defaultTicketSubject  = "No Subject"
)

type TicketFilter struct {
	Priority   string
	Status     string
	Category   string
	AssignedTo string
	Limit      int
	Offset     int
}

type TicketRepository struct {
	db DB
}

func NewTicketRepository(db DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, priority, status, category, subject, description, created_date, resolved_date, assigned_to, created_at`

func (r *TicketRepository) Create(ctx context.Context, ticket models.Ticket) (int64, error) {
	if ticket.Category == "" {
		ticket.Category = defaultTicketCategory
	}
	if ticket.Subject == "" {
		ticket.Subject = defaultTicketSubject
	}

	const query = `
		INSERT INTO it_tickets (
			priority, status, category, subject, description, created_date, resolved_date, assigned_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		ticket.Priority,
		ticket.Status,
		ticket.Category,
		ticket.Subject,
		ticket.Description,
		ticket.CreatedDate,
		ticket.ResolvedDate,
		ticket.AssignedTo,
	).Scan(&id)
	return id, err
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM it_tickets WHERE id = $1`

	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, ErrRecordNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (r *TicketRepository) List(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	var w whereBuilder
	w.eq("priority", filter.Priority)
	w.eq("status", filter.Status)
	w.eq("category", filter.Category)
	w.eq("assigned_to", filter.AssignedTo)
	query := `SELECT ` + ticketColumns + ` FROM it_tickets` + w.sql() + ` ORDER BY id DESC` + w.page(filter.Limit, filter.Offset)

	return r.query(ctx, query, w.args...)
}

// Open lists tickets whose status is "open", newest first.
func (r *TicketRepository) Open(ctx context.Context) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM it_tickets WHERE LOWER(status) = 'open' ORDER BY created_date DESC`
	return r.query(ctx, query)
}

func (r *TicketRepository) HighOrCritical(ctx context.Context) ([]models.Ticket, error) {
	var w whereBuilder
	w.in("priority", []string{"high", "critical"})
	query := `SELECT ` + ticketColumns + ` FROM it_tickets` + w.sql() + ` ORDER BY created_date DESC`
	return r.query(ctx, query, w.args...)
}

func (r *TicketRepository) query(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]models.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (r *TicketRepository) Update(ctx context.Context, ticket models.Ticket) (int64, error) {
	const query = `
		UPDATE it_tickets
		SET priority = $2, status = $3, category = $4, subject = $5, description = $6,
		    created_date = $7, resolved_date = $8, assigned_to = $9
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Priority,
		ticket.Status,
		ticket.Category,
		ticket.Subject,
		ticket.Description,
		ticket.CreatedDate,
		ticket.ResolvedDate,
		ticket.AssignedTo,
	)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, id int64, status string) (int64, error) {
	const query = `UPDATE it_tickets SET status = $2 WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *TicketRepository) Delete(ctx context.Context, id int64) (int64, error) {
	const query = `DELETE FROM it_tickets WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *TicketRepository) CountByStatus(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "it_tickets", column: "status"})
}

func (r *TicketRepository) CountByPriority(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "it_tickets", column: "priority"})
}

func (r *TicketRepository) CountByAssignee(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "it_tickets", column: "assigned_to"})
}

func (r *TicketRepository) HighPriorityByAssignee(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{
		table:  "it_tickets",
		column: "assigned_to",
		where:  "LOWER(priority) = 'high'",
	})
}

func (r *TicketRepository) CountByCreatedDate(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "it_tickets", column: "created_date", orderKey: true})
}

func (r *TicketRepository) CategoriesWithMoreThan(ctx context.Context, minCount int) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{
		table:  "it_tickets",
		column: "category",
		having: "COUNT(*) > $1",
		args:   []any{minCount},
	})
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Category,
		&ticket.Subject,
		&ticket.Description,
		&ticket.CreatedDate,
		&ticket.ResolvedDate,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
	); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}
