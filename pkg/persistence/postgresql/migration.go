package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE role (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(32) NOT NULL,
				scope VARCHAR(255) NOT NULL,
				UNIQUE (name, scope)
			);

			CREATE TABLE "user" (
				id VARCHAR(36) PRIMARY KEY,
				email VARCHAR(255) UNIQUE,
				first_name VARCHAR(32),
				last_name VARCHAR(32),
				global_role_id VARCHAR(36) NOT NULL REFERENCES role(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_user_global_role_id ON "user"(global_role_id);

			CREATE TABLE credentials_entity (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(128) NOT NULL,
				type VARCHAR(128) NOT NULL,
				data TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_credentials_entity_name_type ON credentials_entity(name, type);

			CREATE TABLE tag_entity (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(24) NOT NULL UNIQUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE workflow_entity (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(128) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '{}',
				settings JSONB,
				static_data JSONB,
				pin_data JSONB,
				meta JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE workflows_tags (
				workflow_id VARCHAR(36) NOT NULL REFERENCES workflow_entity(id) ON DELETE CASCADE,
				tag_id VARCHAR(36) NOT NULL REFERENCES tag_entity(id) ON DELETE CASCADE,
				PRIMARY KEY (workflow_id, tag_id)
			);

			CREATE TABLE shared_workflow (
				workflow_id VARCHAR(36) NOT NULL REFERENCES workflow_entity(id) ON DELETE CASCADE,
				user_id VARCHAR(36) NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
				role_id VARCHAR(36) NOT NULL REFERENCES role(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, user_id)
			);

			CREATE INDEX idx_shared_workflow_user_id ON shared_workflow(user_id);
		`,
		2: `
			-- Every instance has an owner role in each scope.
			INSERT INTO role (id, name, scope) VALUES
				('00000000-0000-4000-8000-000000000001', 'owner', 'global'),
				('00000000-0000-4000-8000-000000000002', 'member', 'global'),
				('00000000-0000-4000-8000-000000000003', 'owner', 'workflow'),
				('00000000-0000-4000-8000-000000000004', 'owner', 'credential')
			ON CONFLICT (name, scope) DO NOTHING;
		`,
	}
}
