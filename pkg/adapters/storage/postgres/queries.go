package postgres

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sc_profiles (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		service_type TEXT NOT NULL DEFAULT '',
		vendor TEXT NOT NULL DEFAULT '',
		service_flavor TEXT NOT NULL DEFAULT '',
		insertion_mode TEXT NOT NULL DEFAULT '',
		shared BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sc_nodes (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		profile_id TEXT NOT NULL DEFAULT '',
		config TEXT NOT NULL DEFAULT '',
		shared BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sc_nodes_profile_idx ON sc_nodes (profile_id)`,
	`CREATE TABLE IF NOT EXISTS sc_specs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		config_param TEXT NOT NULL DEFAULT '',
		shared BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sc_spec_nodes (
		spec_id TEXT NOT NULL REFERENCES sc_specs (id) ON DELETE CASCADE,
		node_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (spec_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS sc_spec_nodes_node_idx ON sc_spec_nodes (node_id)`,
	`CREATE TABLE IF NOT EXISTS sc_instances (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		provider_group_id TEXT NOT NULL DEFAULT '',
		consumer_group_id TEXT NOT NULL DEFAULT '',
		classifier_id TEXT NOT NULL DEFAULT '',
		config_param_values TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		status_details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sc_instance_specs (
		instance_id TEXT NOT NULL REFERENCES sc_instances (id) ON DELETE CASCADE,
		spec_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (instance_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS sc_instance_specs_spec_idx ON sc_instance_specs (spec_id)`,
}

const (
	profileColumns = `id, tenant_id, name, description, service_type, vendor, service_flavor, insertion_mode, shared, created_at`

	insertProfileQuery = `INSERT INTO sc_profiles (` + profileColumns + `)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	selectProfileQuery = `SELECT ` + profileColumns + `
	 FROM sc_profiles
	 WHERE id = $1`

	selectProfilesByIDsQuery = `SELECT ` + profileColumns + `
	 FROM sc_profiles
	 WHERE id = ANY($1)`

	listProfilesQuery = `SELECT ` + profileColumns + `
	 FROM sc_profiles
	 WHERE ($1 = '' OR tenant_id = $1)
	 ORDER BY created_at, id`

	updateProfileQuery = `UPDATE sc_profiles
	 SET name = $2, description = $3, service_type = $4, vendor = $5, service_flavor = $6, insertion_mode = $7, shared = $8
	 WHERE id = $1`

	deleteProfileQuery = `DELETE FROM sc_profiles WHERE id = $1`

	selectProfileNodeIDsQuery = `SELECT id
	 FROM sc_nodes
	 WHERE profile_id = $1
	 ORDER BY created_at, id`
)

const (
	nodeColumns = `id, tenant_id, name, description, profile_id, config, shared, created_at`

	insertNodeQuery = `INSERT INTO sc_nodes (` + nodeColumns + `)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	selectNodeQuery = `SELECT ` + nodeColumns + `
	 FROM sc_nodes
	 WHERE id = $1`

	selectNodesByIDsQuery = `SELECT ` + nodeColumns + `
	 FROM sc_nodes
	 WHERE id = ANY($1)`

	listNodesQuery = `SELECT ` + nodeColumns + `
	 FROM sc_nodes
	 WHERE ($1 = '' OR tenant_id = $1)
	 ORDER BY created_at, id`

	updateNodeQuery = `UPDATE sc_nodes
	 SET name = $2, description = $3, profile_id = $4, config = $5, shared = $6
	 WHERE id = $1`

	deleteNodeQuery = `DELETE FROM sc_nodes WHERE id = $1`

	selectNodeSpecIDsQuery = `SELECT s.id
	 FROM sc_specs s
	 WHERE EXISTS (
		SELECT 1 FROM sc_spec_nodes sn WHERE sn.spec_id = s.id AND sn.node_id = $1
	 )
	 ORDER BY s.created_at, s.id`
)

const (
	specColumns = `id, tenant_id, name, description, config_param, shared, created_at`

	insertSpecQuery = `INSERT INTO sc_specs (` + specColumns + `)
	 VALUES ($1,$2,$3,$4,$5,$6,$7)`

	selectSpecQuery = `SELECT ` + specColumns + `
	 FROM sc_specs
	 WHERE id = $1`

	selectSpecsByIDsQuery = `SELECT ` + specColumns + `
	 FROM sc_specs
	 WHERE id = ANY($1)`

	listSpecsQuery = `SELECT ` + specColumns + `
	 FROM sc_specs
	 WHERE ($1 = '' OR tenant_id = $1)
	 ORDER BY created_at, id`

	updateSpecQuery = `UPDATE sc_specs
	 SET name = $2, description = $3, config_param = $4, shared = $5
	 WHERE id = $1`

	deleteSpecQuery = `DELETE FROM sc_specs WHERE id = $1`

	insertSpecNodeQuery = `INSERT INTO sc_spec_nodes (spec_id, node_id, position) VALUES ($1,$2,$3)`

	deleteSpecNodesQuery = `DELETE FROM sc_spec_nodes WHERE spec_id = $1`

	selectSpecNodeIDsQuery = `SELECT node_id
	 FROM sc_spec_nodes
	 WHERE spec_id = $1
	 ORDER BY position`

	selectSpecInstanceIDsQuery = `SELECT i.id
	 FROM sc_instances i
	 WHERE EXISTS (
		SELECT 1 FROM sc_instance_specs isp WHERE isp.instance_id = i.id AND isp.spec_id = $1
	 )
	 ORDER BY i.created_at, i.id`
)

const (
	instanceColumns = `id, tenant_id, name, description, provider_group_id, consumer_group_id, classifier_id, config_param_values, status, status_details, created_at, updated_at`

	insertInstanceQuery = `INSERT INTO sc_instances (` + instanceColumns + `)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	selectInstanceQuery = `SELECT ` + instanceColumns + `
	 FROM sc_instances
	 WHERE id = $1`

	selectInstancesByIDsQuery = `SELECT ` + instanceColumns + `
	 FROM sc_instances
	 WHERE id = ANY($1)`

	listInstancesQuery = `SELECT ` + instanceColumns + `
	 FROM sc_instances
	 WHERE ($1 = '' OR tenant_id = $1)
	 ORDER BY created_at, id`

	updateInstanceQuery = `UPDATE sc_instances
	 SET name = $2, description = $3, classifier_id = $4, config_param_values = $5, status = $6, status_details = $7, updated_at = $8
	 WHERE id = $1`

	deleteInstanceQuery = `DELETE FROM sc_instances WHERE id = $1`

	insertInstanceSpecQuery = `INSERT INTO sc_instance_specs (instance_id, spec_id, position) VALUES ($1,$2,$3)`

	deleteInstanceSpecsQuery = `DELETE FROM sc_instance_specs WHERE instance_id = $1`

	selectInstanceSpecIDsQuery = `SELECT spec_id
	 FROM sc_instance_specs
	 WHERE instance_id = $1
	 ORDER BY position`

	// profile -> node -> spec -> instance
	selectInstanceUsingProfileQuery = `SELECT i.id
	 FROM sc_instances i
	 JOIN sc_instance_specs isp ON isp.instance_id = i.id
	 JOIN sc_spec_nodes sn ON sn.spec_id = isp.spec_id
	 JOIN sc_nodes n ON n.id = sn.node_id
	 WHERE n.profile_id = $1
	 ORDER BY i.created_at, i.id
	 LIMIT 1`
)
