package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the tables and indexes the API relies on.
// Every statement is idempotent.
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}

	tables := []string{
		createUsersTable,
		createDoctorsTable,
		createPatientsTable,
		createPrescriptionsTable,
		createChangeRequestsTable,
		createAuditLogsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createPrescriptionsIndexes,
		createChangeRequestsIndexes,
		createAuditLogsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			email VARCHAR(320) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('DOCTOR', 'PATIENT')),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createDoctorsTable = `
		CREATE TABLE IF NOT EXISTS doctors (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(200) NOT NULL,
			hospital VARCHAR(200) NOT NULL,
			reg_number VARCHAR(100) NOT NULL,
			specialization VARCHAR(200) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(200) NOT NULL,
			unique_patient_id VARCHAR(100) UNIQUE NOT NULL,
			qr_token VARCHAR(100) UNIQUE NOT NULL,
			age INTEGER NOT NULL DEFAULT 0,
			gender VARCHAR(50) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPrescriptionsTable = `
		CREATE TABLE IF NOT EXISTS prescriptions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			medication_name VARCHAR(200) NOT NULL,
			dosage VARCHAR(100) NOT NULL,
			frequency VARCHAR(100) NOT NULL,
			duration VARCHAR(100) NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'EXPIRED', 'REPLACED')),
			prescribed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMP WITH TIME ZONE
		);`

	createChangeRequestsTable = `
		CREATE TABLE IF NOT EXISTS change_requests (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			prescription_id UUID NOT NULL REFERENCES prescriptions(id),
			reason TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'RESPONDED', 'DISMISSED')),
			doctor_response TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			responded_at TIMESTAMP WITH TIME ZONE
		);`

	createAuditLogsTable = `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id VARCHAR(100) NOT NULL,
			action VARCHAR(100) NOT NULL,
			entity VARCHAR(50) NOT NULL,
			entity_id VARCHAR(100) NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	// prescriptions_one_active_idx is what keeps two concurrent writers from
	// both leaving an ACTIVE row for the same medication.
	createPrescriptionsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_prescriptions_patient_id ON prescriptions(patient_id, prescribed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_prescriptions_doctor_id ON prescriptions(doctor_id, prescribed_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS prescriptions_one_active_idx
			ON prescriptions(patient_id, medication_name) WHERE status = 'ACTIVE';`

	createChangeRequestsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_change_requests_patient_id ON change_requests(patient_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_change_requests_doctor_id ON change_requests(doctor_id, created_at DESC);`

	createAuditLogsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);`
)
