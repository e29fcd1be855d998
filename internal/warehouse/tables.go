// Package warehouse is the concrete entity catalog for the e-commerce
// warehouse: raw extract layouts, validated table schemas and the business
// derivations for every entity, expressed as transform engine specs.
package warehouse

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Validated table names. Raw extracts use the bare entity name as their
// source; staged bronze tables are "brz_" + source.
const (
	TableCustomers         = "slv_customers"
	TableAddresses         = "slv_addresses"
	TablePaymentChannels   = "slv_payment_channels"
	TableShipmentCompanies = "slv_shipment_companies"
	TableProducts          = "slv_products"
	TableProductPrices     = "slv_product_prices"
	TableOrders            = "slv_orders"
	TableOrderDetails      = "slv_order_details"
	TableInvoices          = "slv_invoices"
	TableInvoiceDetails    = "slv_invoice_details"
	TablePayments          = "slv_payments"
	TableShipments         = "slv_shipments"
	TableIssues            = "dq_issues"
)

// RawLoadColumn is the extract-load timestamp every raw entity carries. It
// ranks dedupe candidates: the most recently loaded record wins.
const RawLoadColumn = "load_date"

// Portable column types. Backends translate them to native DDL. Key and
// code columns use a bounded varchar so unique constraints stay indexable
// on every backend.
const (
	typeKey   = "varchar(64)"
	typeText  = "text"
	typeInt   = "integer"
	typeMoney = "double precision"
	typeBool  = "boolean"
	typeDate  = "date"
	typeTS    = "timestamptz"
)

func col(name, typ string) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: typ}
}

// silverTable builds a validated table spec: the given columns plus the
// load timestamp, with a unique constraint on the natural key.
func silverTable(name string, naturalKey []string, columns ...storage.ColumnSpec) storage.TableSpec {
	cols := make([]storage.ColumnSpec, 0, len(columns)+1)
	cols = append(cols, columns...)
	cols = append(cols, col(transform.LoadTimestampColumn, typeTS))
	return storage.TableSpec{
		Name:            name,
		AutoCreateTable: true,
		Columns:         cols,
		Constraints: []storage.ConstraintSpec{
			{Kind: "unique", Columns: naturalKey},
		},
	}
}

// IssueTable is the quality issue sink. The only surrogate-keyed table in
// the warehouse: issues have no natural identity of their own.
func IssueTable() storage.TableSpec {
	return storage.TableSpec{
		Name:            TableIssues,
		AutoCreateTable: true,
		PrimaryKey:      &storage.PrimaryKeySpec{Name: "issue_id", Type: "serial"},
		Columns: []storage.ColumnSpec{
			col("table_name", typeKey),
			col("column_name", typeKey),
			col("check_type", typeKey),
			col("message", typeText),
			col("value", typeText),
			col("primary_key", typeText),
			col("detected_at", typeTS),
		},
	}
}

// Specs returns the full entity catalog in declaration order. The engine
// derives execution order from the foreign keys, not from this order.
func Specs() []transform.Spec {
	return []transform.Spec{
		customerSpec(),
		addressSpec(),
		paymentChannelSpec(),
		shipmentCompanySpec(),
		productSpec(),
		productPriceSpec(),
		orderSpec(),
		orderDetailSpec(),
		invoiceSpec(),
		invoiceDetailSpec(),
		paymentSpec(),
		shipmentSpec(),
	}
}

// Tables returns every validated table spec plus the issue sink, for DDL.
func Tables() []storage.TableSpec {
	specs := Specs()
	out := make([]storage.TableSpec, 0, len(specs)+1)
	for _, s := range specs {
		out = append(out, s.Table)
	}
	out = append(out, IssueTable())
	return out
}
