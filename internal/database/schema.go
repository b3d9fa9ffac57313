package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            TEXT NOT NULL,
		contract_id        TEXT NOT NULL,
		run_id             TEXT NOT NULL DEFAULT '',
		buy_price          DOUBLE PRECISION NOT NULL DEFAULT 0,
		payout             DOUBLE PRECISION NOT NULL DEFAULT 0,
		profit             DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency           TEXT NOT NULL DEFAULT '',
		contract_type      TEXT NOT NULL DEFAULT '',
		shortcode          TEXT NOT NULL DEFAULT '',
		date_start         TEXT NOT NULL DEFAULT '',
		date_expiry        TEXT NOT NULL DEFAULT '',
		entry_tick         TEXT NOT NULL DEFAULT '',
		exit_tick          TEXT NOT NULL DEFAULT '',
		strategy_intent    JSONB,
		behavioral_summary JSONB,
		chart_image_b64    TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, contract_id)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_id_idx ON transactions (user_id, id DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_run_id_idx ON transactions (user_id, run_id) WHERE run_id <> ''`,
	`ALTER TABLE transactions ADD COLUMN IF NOT EXISTS chart_image_b64 TEXT`,
	`CREATE TABLE IF NOT EXISTS analysis_results (
		id                  BIGSERIAL PRIMARY KEY,
		transaction_id      BIGINT NOT NULL REFERENCES transactions (id) ON DELETE CASCADE,
		trade_analysis      TEXT NOT NULL DEFAULT '',
		key_factors         JSONB NOT NULL DEFAULT '[]',
		win_loss_assessment TEXT NOT NULL DEFAULT '',
		trade_explanation   TEXT NOT NULL DEFAULT '',
		learning_points     JSONB NOT NULL DEFAULT '[]',
		explanation_file    TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS analysis_results_transaction_idx ON analysis_results (transaction_id, created_at DESC)`,
}
