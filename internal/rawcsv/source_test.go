package rawcsv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExtract(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadEntity(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "customers.csv",
		"customer_id,first_name,load_date\nC1,Anna,2026-01-02\nC2,Bert,2026-01-03\n")

	src := &Source{Dir: dir}
	rows, err := src.ReadEntity(context.Background(), "customers",
		[]string{"customer_id", "first_name", "load_date"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"C1", "Anna", "2026-01-02"}, rows[0])
	assert.Equal(t, []any{"C2", "Bert", "2026-01-03"}, rows[1])
}

func TestReadEntityHeaderFolding(t *testing.T) {
	dir := t.TempDir()
	// BOM on the first header cell, mixed case, spaces instead of underscores.
	writeExtract(t, dir, "orders.csv",
		"\uFEFFOrder ID,Order Status\nO1,COMPLETED\n")

	src := &Source{Dir: dir}
	rows, err := src.ReadEntity(context.Background(), "orders",
		[]string{"order_id", "order_status"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"O1", "COMPLETED"}, rows[0])
}

func TestReadEntityMissingColumnIsNil(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "products.csv",
		"product_id\nP1\n")

	src := &Source{Dir: dir}
	rows, err := src.ReadEntity(context.Background(), "products",
		[]string{"product_id", "rating"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"P1", nil}, rows[0])
}

func TestReadEntityEmptyAndPaddedCells(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "payments.csv",
		"payment_id,payment_status,refund_status\nP1,  COMPLETED  ,\nP2,,NONE\n")

	src := &Source{Dir: dir}
	rows, err := src.ReadEntity(context.Background(), "payments",
		[]string{"payment_id", "payment_status", "refund_status"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"P1", "COMPLETED", nil}, rows[0])
	assert.Equal(t, []any{"P2", nil, "NONE"}, rows[1])
}

func TestReadEntityShortRecord(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "invoices.csv",
		"invoice_id,total_amount,load_date\nI1,10.5\n")

	src := &Source{Dir: dir}
	rows, err := src.ReadEntity(context.Background(), "invoices",
		[]string{"invoice_id", "total_amount", "load_date"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"I1", "10.5", nil}, rows[0])
}

func TestReadEntityAlternateDelimiter(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "shipments.csv",
		"shipment_id;shipment_status\nS1;DELIVERED\n")

	src := &Source{Dir: dir, Comma: ';'}
	rows, err := src.ReadEntity(context.Background(), "shipments",
		[]string{"shipment_id", "shipment_status"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"S1", "DELIVERED"}, rows[0])
}

func TestReadEntityMissingFile(t *testing.T) {
	src := &Source{Dir: t.TempDir()}
	_, err := src.ReadEntity(context.Background(), "nope", []string{"id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadEntityCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeExtract(t, dir, "customers.csv", "customer_id\nC1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &Source{Dir: dir}
	_, err := src.ReadEntity(ctx, "customers", []string{"customer_id"})
	assert.ErrorIs(t, err, context.Canceled)
}
