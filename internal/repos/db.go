package repos

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"posbackend/internal/domain"
)

// driverNames maps DB_DRIVER values to registered database/sql drivers.
var driverNames = map[string]string{
	"sqlite":   "sqlite",
	"mysql":    "mysql",
	"postgres": "pgx",
}

// OpenDB connects, verifies the connection, creates missing tables and,
// when seed is set, inserts the placeholder customer and demo catalog.
func OpenDB(driver, dsn string, seed bool) (*sqlx.DB, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	if driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// One connection: writers serialize and :memory: stays a single database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	if seed {
		if err := seedDefaultData(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return db, nil
}

// Statements run one at a time; the mysql driver rejects multi-statement Exec.
// Foreign keys are table constraints because MySQL ignores inline REFERENCES.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers(
  customer_id   VARCHAR(64) PRIMARY KEY,
  customer_name VARCHAR(255) NOT NULL,
  age           INTEGER,
  gender        VARCHAR(32)
)`,
	`CREATE TABLE IF NOT EXISTS items(
  product_code VARCHAR(64) PRIMARY KEY,
  product_name VARCHAR(255) NOT NULL,
  unit_price   BIGINT NOT NULL CHECK (unit_price >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS purchases(
  purchase_id   VARCHAR(64) PRIMARY KEY,
  customer_id   VARCHAR(64) NOT NULL,
  purchase_date VARCHAR(10) NOT NULL,
  total_amount  BIGINT NOT NULL DEFAULT 0 CHECK (total_amount >= 0),
  created_at    VARCHAR(32) NOT NULL,
  FOREIGN KEY (customer_id) REFERENCES customers(customer_id)
)`,
	`CREATE TABLE IF NOT EXISTS purchase_details(
  purchase_id  VARCHAR(64) NOT NULL,
  line_no      INTEGER NOT NULL CHECK (line_no >= 1),
  product_code VARCHAR(64) NOT NULL,
  quantity     BIGINT NOT NULL CHECK (quantity > 0),
  unit_price   BIGINT NOT NULL CHECK (unit_price >= 0),
  subtotal     BIGINT NOT NULL CHECK (subtotal >= 0),
  PRIMARY KEY (purchase_id, line_no),
  FOREIGN KEY (purchase_id) REFERENCES purchases(purchase_id),
  FOREIGN KEY (product_code) REFERENCES items(product_code)
)`,
}

// sqlitePragmas are set through the DSN so the driver applies them to
// every connection it opens, not just the first.
var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "1"},
	{"busy_timeout", "5000"},
}

func sqliteDSN(dsn string) string {
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name+"(") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + p.name + "(" + p.value + ")"
	}
	return dsn
}

func ensureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var defaultCustomer = domain.Customer{ID: "C001", Name: "一般顧客", Age: 30, Gender: "その他"}

var defaultItems = []struct {
	Code, Name string
	Price      int64
}{
	{"1234567888", "クルトガシャーペン", 170},
	{"1111122222", "ジェットストリームボールペン", 200},
	{"7492038384", "ゼブラ油性ペン", 120},
	{"37593045739", "MONO消しゴム", 110},
	{"2948560493", "トンボ鉛筆", 60},
	{"12345678901", "おーいお茶", 150},
	{"98765432109", "ソフラン", 300},
	{"55555555555", "福島産ほうれん草", 188},
	{"77777777777", "タイガー歯ブラシ青", 200},
	{"99999999999", "四ツ谷サイダー", 160},
}

// seedDefaultData is idempotent and safe to run on every start.
func seedDefaultData(ctx context.Context, db *sqlx.DB) error {
	return WithTx(ctx, db, func(tx *sqlx.Tx) error {
		inserted := 0

		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM customers WHERE customer_id = ?`), defaultCustomer.ID); err != nil {
			return err
		}
		if n == 0 {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO customers(customer_id, customer_name, age, gender) VALUES(?, ?, ?, ?)`),
				defaultCustomer.ID, defaultCustomer.Name, defaultCustomer.Age, defaultCustomer.Gender); err != nil {
				return err
			}
			inserted++
		}

		for _, it := range defaultItems {
			if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM items WHERE product_code = ?`), it.Code); err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO items(product_code, product_name, unit_price) VALUES(?, ?, ?)`),
				it.Code, it.Name, it.Price); err != nil {
				return err
			}
			inserted++
		}

		if inserted > 0 {
			log.Printf("[seed] inserted %d customer/catalog rows", inserted)
		}
		return nil
	})
}
