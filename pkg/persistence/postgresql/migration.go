package postgresql

// migrations returns the versioned schema for the execution store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(128) NOT NULL,
				url TEXT NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'running',
				state JSONB NOT NULL DEFAULT '{}',
				idempotency_key VARCHAR(128) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_user_id ON executions (user_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status);
			CREATE INDEX IF NOT EXISTS idx_executions_idempotency ON executions (user_id, idempotency_key);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS social_connections (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(128) NOT NULL,
				provider VARCHAR(32) NOT NULL,
				account_id VARCHAR(128) NOT NULL,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				label VARCHAR(128) NOT NULL DEFAULT '',
				token_json TEXT NOT NULL DEFAULT '',
				expires_at TIMESTAMP WITH TIME ZONE,
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_social_connections_user ON social_connections (user_id, provider);
		`,
	}
}
