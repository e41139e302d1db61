package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// StoredKeyMaterial is a Device's persisted private key and certificate PEM
// blocks, keyed by the Edge it was provisioned against.
type StoredKeyMaterial struct {
	EdgeUUID       string
	PrivateKeyPEM  []byte
	CertificatePEM []byte
}

// KeyMaterialRepo persists Device key material and upload bookkeeping
// across process restarts, including a record of the models a Device has
// uploaded to a given Edge.
type KeyMaterialRepo struct {
	db *DB
}

// NewKeyMaterialRepo creates a new local key material repository.
func NewKeyMaterialRepo(db *DB) *KeyMaterialRepo {
	return &KeyMaterialRepo{db: db}
}

// SaveKeyMaterial upserts the private key and certificate PEM for an edge.
// Complexity: O(1)
func (r *KeyMaterialRepo) SaveKeyMaterial(ctx context.Context, km StoredKeyMaterial) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO key_material (edge_uuid, private_key_pem, certificate_pem, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(edge_uuid) DO UPDATE SET
		   private_key_pem = excluded.private_key_pem,
		   certificate_pem = excluded.certificate_pem,
		   updated_at = CURRENT_TIMESTAMP`,
		km.EdgeUUID, km.PrivateKeyPEM, km.CertificatePEM,
	)
	if err != nil {
		return fmt.Errorf("keymaterial_repo: save: %w", err)
	}
	return nil
}

// LoadKeyMaterial returns the stored key material for an edge, or
// sql.ErrNoRows if nothing has been persisted for it yet.
// Complexity: O(1)
func (r *KeyMaterialRepo) LoadKeyMaterial(ctx context.Context, edgeUUID string) (StoredKeyMaterial, error) {
	var km StoredKeyMaterial
	km.EdgeUUID = edgeUUID

	row := r.db.QueryRowContext(ctx,
		`SELECT private_key_pem, certificate_pem FROM key_material WHERE edge_uuid = ?`,
		edgeUUID,
	)
	if err := row.Scan(&km.PrivateKeyPEM, &km.CertificatePEM); err != nil {
		if err == sql.ErrNoRows {
			return StoredKeyMaterial{}, err
		}
		return StoredKeyMaterial{}, fmt.Errorf("keymaterial_repo: load: %w", err)
	}
	return km, nil
}

// MarkModelUploaded records that a model file has been uploaded to an edge.
// Complexity: O(1)
func (r *KeyMaterialRepo) MarkModelUploaded(ctx context.Context, edgeUUID, modelBasename string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO uploaded_models (edge_uuid, model_basename, uploaded_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)`,
		edgeUUID, modelBasename,
	)
	if err != nil {
		return fmt.Errorf("keymaterial_repo: mark uploaded: %w", err)
	}
	return nil
}

// WasModelUploaded reports whether a model has already been uploaded to an
// edge, so a Device can skip a redundant UploadModel round trip.
// Complexity: O(1)
func (r *KeyMaterialRepo) WasModelUploaded(ctx context.Context, edgeUUID, modelBasename string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM uploaded_models WHERE edge_uuid = ? AND model_basename = ?`,
		edgeUUID, modelBasename,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keymaterial_repo: check uploaded: %w", err)
	}
	return true, nil
}
