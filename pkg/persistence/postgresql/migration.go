package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE deals (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				pipeline_id VARCHAR(255) NOT NULL,
				title TEXT NOT NULL,
				value DOUBLE PRECISION NOT NULL DEFAULT 0,
				currency VARCHAR(16) NOT NULL DEFAULT '',
				stage VARCHAR(255) NOT NULL,
				probability INT NOT NULL DEFAULT 0,
				expected_close_date TIMESTAMP WITH TIME ZONE,
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				custom_fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_deals_pipeline ON deals(account_id, pipeline_id, created_at);

			CREATE TABLE contact_deals (
				deal_id VARCHAR(255) NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				linked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (deal_id, contact_id)
			);

			CREATE TABLE pipelines (
				account_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (account_id, id)
			);
		`,
		2: `
			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				deal_id VARCHAR(255) NOT NULL,
				rule_id VARCHAR(255) NOT NULL DEFAULT '',
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				assignee_id VARCHAR(255) NOT NULL DEFAULT '',
				task_type VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('open', 'completed')),
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_tasks_deal_id ON tasks(deal_id, created_at);

			CREATE TABLE age_trigger_markers (
				deal_id VARCHAR(255) NOT NULL,
				rule_id VARCHAR(255) NOT NULL,
				fired_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (deal_id, rule_id)
			);
		`,
	}
}
