package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// OrderRepository implements ports.OrderRepository with raw SQL over pgx
type OrderRepository struct {
	db *DBExecutor
}

var _ ports.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *DBExecutor) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	o.id, o.code, o.channel_id, o.state, o.currency, o.total_with_tax, o.created_at,
	c.id, c.email, c.first_name, c.last_name,
	(SELECT COUNT(*) FROM order_shipping_lines s WHERE s.order_id = o.id)`

const lineColumns = `
	l.id, l.order_id, l.quantity, l.unit_price, l.downpayment, l.start_date,
	l.subscription_ids, l.downpayment_subscription_id, l.subscription_hash,
	v.id, v.name, v.sku, v.currency, v.price,
	sc.id::text, sc.channel_id, sc.name, sc.interval_unit, sc.interval_count, sc.duration_unit, sc.duration_count,
	sc.start_moment, sc.fixed_start_date, sc.downpayment_amount, sc.paid_up_front, sc.auto_renew,
	sc.created_at, sc.updated_at`

const lineJoins = `
	FROM order_lines l
	JOIN variants v ON v.id = l.variant_id
	LEFT JOIN schedules sc ON sc.id = v.schedule_id`

// FindOrderByCode loads an order with customer and lines
func (r *OrderRepository) FindOrderByCode(ctx context.Context, channelID, code string) (*domain.Order, error) {
	return r.findOrder(ctx, "find order by code", `o.channel_id = $1 AND o.code = $2`, channelID, code)
}

// FindOrderByID loads an order with customer and lines
func (r *OrderRepository) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOrder(ctx, "find order by id", `o.id = $1`, id)
}

// findOrder reads the order row and its lines from one snapshot
func (r *OrderRepository) findOrder(ctx context.Context, op, where string, args ...interface{}) (*domain.Order, error) {
	var order *domain.Order
	err := r.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+`
			FROM orders o LEFT JOIN customers c ON c.id = o.customer_id
			WHERE `+where, args...)
		if order, err = scanOrder(row); err != nil {
			return notFoundOr(err, op)
		}
		order.Lines, err = r.listLines(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) listLines(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.OrderLine, error) {
	rows, err := tx.Query(ctx, `SELECT `+lineColumns+lineJoins+`
		WHERE l.order_id = $1 ORDER BY l.position`, orderID)
	if err != nil {
		return nil, persistenceError(err, "list order lines")
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, persistenceError(err, "scan order line")
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list order lines")
	}
	return lines, nil
}

// FindOrderLineByID loads a single line with its variant and schedule
func (r *OrderRepository) FindOrderLineByID(ctx context.Context, id string) (*domain.OrderLine, error) {
	row := r.db.Conn(ctx).QueryRow(ctx, `SELECT `+lineColumns+lineJoins+` WHERE l.id = $1`, id)
	line, err := scanLine(row)
	if err != nil {
		return nil, notFoundOr(err, "find order line")
	}
	return line, nil
}

// FindVariantByID loads a variant of the channel with its schedule
func (r *OrderRepository) FindVariantByID(ctx context.Context, channelID, id string) (*domain.Variant, error) {
	row := r.db.Conn(ctx).QueryRow(ctx, `SELECT
		v.id, v.name, v.sku, v.currency, v.price,
		sc.id::text, sc.channel_id, sc.name, sc.interval_unit, sc.interval_count, sc.duration_unit, sc.duration_count,
		sc.start_moment, sc.fixed_start_date, sc.downpayment_amount, sc.paid_up_front, sc.auto_renew,
		sc.created_at, sc.updated_at
		FROM variants v LEFT JOIN schedules sc ON sc.id = v.schedule_id
		WHERE v.channel_id = $1 AND v.id = $2`, channelID, id)

	var (
		v  domain.Variant
		sr scheduleRow
	)
	dest := append([]interface{}{&v.ID, &v.Name, &v.SKU, &v.Currency, &v.Price}, sr.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, notFoundOr(err, "find variant")
	}
	v.Schedule = sr.toDomain()
	return &v, nil
}

// AppendSubscriptionIDs adds ids not already on the line
func (r *OrderRepository) AppendSubscriptionIDs(ctx context.Context, lineID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE order_lines
		SET subscription_ids = subscription_ids || ARRAY(
			SELECT DISTINCT x FROM unnest($2::text[]) AS x WHERE x <> ALL(subscription_ids)
		)
		WHERE id = $1`, lineID, ids)
	if err != nil {
		return persistenceError(err, "append subscription ids")
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeNotFound, "order line not found").WithDetail("line_id", lineID)
	}
	return nil
}

// SetDownpaymentSubscriptionID stores id as the line's downpayment subscription
func (r *OrderRepository) SetDownpaymentSubscriptionID(ctx context.Context, lineID, id string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE order_lines
		SET downpayment_subscription_id = $2::text,
			subscription_ids = CASE WHEN $2::text = ANY(subscription_ids) THEN subscription_ids
				ELSE array_append(subscription_ids, $2::text) END
		WHERE id = $1`, lineID, id)
	if err != nil {
		return persistenceError(err, "set downpayment subscription id")
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeNotFound, "order line not found").WithDetail("line_id", lineID)
	}
	return nil
}

// SetSubscriptionHash stores the line's subscription hash
func (r *OrderRepository) SetSubscriptionHash(ctx context.Context, lineID, hash string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `UPDATE order_lines SET subscription_hash = $2 WHERE id = $1`, lineID, hash)
	if err != nil {
		return persistenceError(err, "set subscription hash")
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeNotFound, "order line not found").WithDetail("line_id", lineID)
	}
	return nil
}

// AddPaymentToOrder records a payment
func (r *OrderRepository) AddPaymentToOrder(ctx context.Context, orderID string, payment domain.PaymentInput) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}
	if payment.Metadata == nil {
		metadata = []byte("{}")
	}
	_, err = r.db.Conn(ctx).Exec(ctx, `
		INSERT INTO order_payments (order_id, method, transaction_id, amount, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, payment.Method, payment.TransactionID, payment.Amount, metadata)
	if err != nil {
		return persistenceError(err, "add payment")
	}
	return nil
}

// TransitionOrderState sets the order state
func (r *OrderRepository) TransitionOrderState(ctx context.Context, orderID string, state domain.OrderState) error {
	tag, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE orders SET state = $2, updated_at = NOW() WHERE id = $1`, orderID, string(state))
	if err != nil {
		return persistenceError(err, "transition order state")
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeNotFound, "order not found").WithDetail("order_id", orderID)
	}
	return nil
}

// AddSurcharge adds a surcharge and raises the order total by its amount
func (r *OrderRepository) AddSurcharge(ctx context.Context, orderID string, surcharge domain.Surcharge) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_surcharges (order_id, description, sku, amount) VALUES ($1, $2, $3, $4)`,
			orderID, surcharge.Description, surcharge.SKU, surcharge.Amount); err != nil {
			return persistenceError(err, "add surcharge")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET total_with_tax = total_with_tax + $2, updated_at = NOW() WHERE id = $1`,
			orderID, surcharge.Amount); err != nil {
			return persistenceError(err, "update order total")
		}
		return nil
	})
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                          domain.Order
		state                      string
		custID, email, first, last pgtype.Text
		shippingLines              int64
	)
	if err := row.Scan(&o.ID, &o.Code, &o.ChannelID, &state, &o.Currency, &o.TotalWithTax, &o.CreatedAt,
		&custID, &email, &first, &last, &shippingLines); err != nil {
		return nil, err
	}
	o.State = domain.OrderState(state)
	o.ShippingLineCount = int(shippingLines)
	if custID.Valid {
		o.Customer = &domain.Customer{ID: custID.String, Email: email.String, FirstName: first.String, LastName: last.String}
	}
	return &o, nil
}

func scanLine(row pgx.Row) (*domain.OrderLine, error) {
	var (
		l                 domain.OrderLine
		hash, downpayment pgtype.Text
		sr                scheduleRow
	)
	dest := []interface{}{
		&l.ID, &l.OrderID, &l.Quantity, &l.UnitPrice, &l.Downpayment, &l.StartDate,
		&l.SubscriptionIDs, &downpayment, &hash,
		&l.Variant.ID, &l.Variant.Name, &l.Variant.SKU, &l.Variant.Currency, &l.Variant.Price,
	}
	if err := row.Scan(append(dest, sr.dest()...)...); err != nil {
		return nil, err
	}
	l.SubscriptionHash = hash.String
	l.DownpaymentSubscriptionID = downpayment.String
	l.Variant.Schedule = sr.toDomain()
	return &l, nil
}

// scheduleRow scans a LEFT JOINed schedule where every column may be NULL
type scheduleRow struct {
	createdAt, updatedAt, fixedStart  pgtype.Timestamptz
	id, channelID, name               pgtype.Text
	intervalUnit, durationUnit, start pgtype.Text
	intervalCount, durationCount      pgtype.Int4
	downpayment                       pgtype.Int8
	paidUpFront, autoRenew            pgtype.Bool
}

func (s *scheduleRow) dest() []interface{} {
	return []interface{}{
		&s.id, &s.channelID, &s.name, &s.intervalUnit, &s.intervalCount, &s.durationUnit, &s.durationCount,
		&s.start, &s.fixedStart, &s.downpayment, &s.paidUpFront, &s.autoRenew, &s.createdAt, &s.updatedAt,
	}
}

func (s *scheduleRow) toDomain() *domain.Schedule {
	if !s.id.Valid {
		return nil
	}
	return &domain.Schedule{
		FixedStartDate:    timePtr(s.fixedStart),
		CreatedAt:         s.createdAt.Time,
		UpdatedAt:         s.updatedAt.Time,
		ID:                s.id.String,
		ChannelID:         s.channelID.String,
		Name:              s.name.String,
		IntervalUnit:      domain.IntervalUnit(s.intervalUnit.String),
		DurationUnit:      domain.IntervalUnit(s.durationUnit.String),
		StartMoment:       domain.StartMoment(s.start.String),
		IntervalCount:     int(s.intervalCount.Int32),
		DurationCount:     int(s.durationCount.Int32),
		DownpaymentAmount: s.downpayment.Int64,
		PaidUpFront:       s.paidUpFront.Bool,
		AutoRenew:         s.autoRenew.Bool,
	}
}
