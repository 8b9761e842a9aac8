package sqlstore

// Schemas are applied in order at Open and must stay idempotent. Dimension
// names are unique and compared case-sensitively on both engines, which is
// what makes INSERT-ignore followed by a lookup safe under concurrency.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS employee_info (
		employee_id INTEGER PRIMARY KEY,
		employee_first_name TEXT NOT NULL DEFAULT ''
	)`,

	// Dimensions: SQLite's default BINARY collation keeps names case-sensitive.
	`CREATE TABLE IF NOT EXISTS insured (
		insured_id INTEGER PRIMARY KEY AUTOINCREMENT,
		insured_name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_insured_name ON insured(insured_name)`,
	`CREATE TABLE IF NOT EXISTS insurer (
		insurer_id INTEGER PRIMARY KEY AUTOINCREMENT,
		insurer_name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_insurer_name ON insurer(insurer_name)`,
	`CREATE TABLE IF NOT EXISTS policy_type (
		policy_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
		type_name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_policy_type_name ON policy_type(type_name)`,
	`CREATE TABLE IF NOT EXISTS claim_status (
		status_id INTEGER PRIMARY KEY AUTOINCREMENT,
		status_name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_status_name ON claim_status(status_name)`,
	`CREATE TABLE IF NOT EXISTS claim_subject_type (
		subject_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
		type_name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_subject_type_name ON claim_subject_type(type_name)`,

	// Dates are TEXT (YYYY-MM-DD) so the driver hands them back verbatim.
	`CREATE TABLE IF NOT EXISTS policy (
		policy_id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_number TEXT,
		insured_id INTEGER REFERENCES insured(insured_id),
		insurer_id INTEGER REFERENCES insurer(insurer_id),
		policy_type_id INTEGER REFERENCES policy_type(policy_type_id),
		expire_date TEXT,
		premium NUMERIC,
		commission NUMERIC,
		commission_status TEXT NOT NULL DEFAULT 'Unpaid'
			CHECK (commission_status IN ('Paid', 'Unpaid')),
		provisional INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_number ON policy(policy_number)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_expire_date ON policy(expire_date)`,

	`CREATE TABLE IF NOT EXISTS vehicle (
		vehicle_id INTEGER PRIMARY KEY AUTOINCREMENT,
		insured_id INTEGER REFERENCES insured(insured_id),
		policy_id INTEGER REFERENCES policy(policy_id),
		plate_number TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_policy ON vehicle(policy_id)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_plate ON vehicle(plate_number)`,

	`CREATE TABLE IF NOT EXISTS claim (
		claim_id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_id INTEGER REFERENCES policy(policy_id) ON DELETE SET NULL,
		insured_id INTEGER REFERENCES insured(insured_id),
		vehicle_id INTEGER REFERENCES vehicle(vehicle_id) ON DELETE SET NULL,
		accident_date TEXT,
		accident_time TEXT,
		accident_place TEXT,
		accident_reason TEXT,
		status_id INTEGER REFERENCES claim_status(status_id),
		subject_type_id INTEGER REFERENCES claim_subject_type(subject_type_id),
		subject_detail TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_claim_insured ON claim(insured_id)`,

	`CREATE TABLE IF NOT EXISTS commission_payment (
		payment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_id INTEGER NOT NULL REFERENCES policy(policy_id) ON DELETE CASCADE,
		payment_amount NUMERIC NOT NULL,
		paid_by TEXT NOT NULL DEFAULT 'System',
		paid_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commission_payment_policy ON commission_payment(policy_id)`,

	// No foreign key on employee_id: the trail outlives employee records.
	`CREATE TABLE IF NOT EXISTS audit_logs (
		log_id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id INTEGER,
		description TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS employee_info (
		employee_id BIGINT PRIMARY KEY,
		employee_first_name VARCHAR(255) NOT NULL DEFAULT ''
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// utf8mb4_bin keeps dimension names case-sensitive.
	`CREATE TABLE IF NOT EXISTS insured (
		insured_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		insured_name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
		UNIQUE KEY idx_insured_name (insured_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS insurer (
		insurer_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		insurer_name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
		UNIQUE KEY idx_insurer_name (insurer_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS policy_type (
		policy_type_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		type_name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
		UNIQUE KEY idx_policy_type_name (type_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS claim_status (
		status_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		status_name VARCHAR(100) COLLATE utf8mb4_bin NOT NULL,
		UNIQUE KEY idx_claim_status_name (status_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS claim_subject_type (
		subject_type_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		type_name VARCHAR(100) COLLATE utf8mb4_bin NOT NULL,
		UNIQUE KEY idx_claim_subject_type_name (type_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS policy (
		policy_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		policy_number VARCHAR(100),
		insured_id BIGINT NULL,
		insurer_id BIGINT NULL,
		policy_type_id BIGINT NULL,
		expire_date DATE NULL,
		premium DECIMAL(14,2) NULL,
		commission DECIMAL(14,2) NULL,
		commission_status ENUM('Paid', 'Unpaid') NOT NULL DEFAULT 'Unpaid',
		provisional TINYINT(1) NOT NULL DEFAULT 0,
		KEY idx_policy_number (policy_number),
		KEY idx_policy_expire_date (expire_date),
		CONSTRAINT fk_policy_insured FOREIGN KEY (insured_id) REFERENCES insured(insured_id),
		CONSTRAINT fk_policy_insurer FOREIGN KEY (insurer_id) REFERENCES insurer(insurer_id),
		CONSTRAINT fk_policy_type FOREIGN KEY (policy_type_id) REFERENCES policy_type(policy_type_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS vehicle (
		vehicle_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		insured_id BIGINT NULL,
		policy_id BIGINT NULL,
		plate_number VARCHAR(32) NOT NULL,
		KEY idx_vehicle_policy (policy_id),
		KEY idx_vehicle_plate (plate_number),
		CONSTRAINT fk_vehicle_insured FOREIGN KEY (insured_id) REFERENCES insured(insured_id),
		CONSTRAINT fk_vehicle_policy FOREIGN KEY (policy_id) REFERENCES policy(policy_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS claim (
		claim_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		policy_id BIGINT NULL,
		insured_id BIGINT NULL,
		vehicle_id BIGINT NULL,
		accident_date DATE NULL,
		accident_time VARCHAR(16) NULL,
		accident_place VARCHAR(255) NULL,
		accident_reason TEXT NULL,
		status_id BIGINT NULL,
		subject_type_id BIGINT NULL,
		subject_detail TEXT NULL,
		KEY idx_claim_insured (insured_id),
		CONSTRAINT fk_claim_policy FOREIGN KEY (policy_id) REFERENCES policy(policy_id) ON DELETE SET NULL,
		CONSTRAINT fk_claim_insured FOREIGN KEY (insured_id) REFERENCES insured(insured_id),
		CONSTRAINT fk_claim_vehicle FOREIGN KEY (vehicle_id) REFERENCES vehicle(vehicle_id) ON DELETE SET NULL,
		CONSTRAINT fk_claim_status FOREIGN KEY (status_id) REFERENCES claim_status(status_id),
		CONSTRAINT fk_claim_subject_type FOREIGN KEY (subject_type_id) REFERENCES claim_subject_type(subject_type_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS commission_payment (
		payment_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		policy_id BIGINT NOT NULL,
		payment_amount DECIMAL(14,2) NOT NULL,
		paid_by VARCHAR(255) NOT NULL DEFAULT 'System',
		paid_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_commission_payment_policy (policy_id),
		CONSTRAINT fk_commission_payment_policy FOREIGN KEY (policy_id) REFERENCES policy(policy_id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		log_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		employee_id BIGINT NULL,
		action VARCHAR(32) NOT NULL,
		entity VARCHAR(64) NOT NULL,
		entity_id BIGINT NULL,
		description TEXT NOT NULL,
		timestamp DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_audit_logs_timestamp (timestamp)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
