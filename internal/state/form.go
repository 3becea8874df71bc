package state

import (
	"context"
	"fmt"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// FormState is the read side of the form directory.
type FormState interface {
	FindByKey(ctx context.Context, formKey int64) (*protocol.FormRecord, bool, error)
	FindLatestByID(ctx context.Context, formID, tenantID string) (*protocol.FormRecord, bool, error)
	FindByIDAndVersion(ctx context.Context, formID string, version int32, tenantID string) (*protocol.FormRecord, bool, error)
	FindByIDAndDeploymentKey(ctx context.Context, formID string, deploymentKey int64, tenantID string) (*protocol.FormRecord, bool, error)
	FindByIDAndVersionTag(ctx context.Context, formID, versionTag, tenantID string) (*protocol.FormRecord, bool, error)

	// NextVersion returns the version a newly deployed form with this id
	// would get. It only ever grows, also across deletions.
	NextVersion(ctx context.Context, formID, tenantID string) (int32, error)
}

// MutableFormState is the write side of the form directory.
type MutableFormState interface {
	FormState
	StoreForm(ctx context.Context, form *protocol.FormRecord) error
	UpdateLatestVersion(ctx context.Context, form *protocol.FormRecord) error
	StoreDeploymentKeyIndex(ctx context.Context, form *protocol.FormRecord) error
	StoreVersionTagIndex(ctx context.Context, form *protocol.FormRecord) error
	DeleteForm(ctx context.Context, formKey int64) error
}

// DBFormState stores forms by key with a latest-version pointer, a
// version counter and secondary indexes per (tenant, form id).
type DBFormState struct {
	byKey           *db.ColumnFamily[*protocol.FormRecord]
	versionByID     *db.ColumnFamily[int64]
	latestByID      *db.ColumnFamily[int32]
	nextVersion     *db.ColumnFamily[int32]
	byDeploymentKey *db.ColumnFamily[int64]
	byVersionTag    *db.ColumnFamily[int64]
}

// NewFormState returns the form partition of d.
func NewFormState(d *db.DB) *DBFormState {
	return &DBFormState{
		byKey:           db.NewColumnFamily[*protocol.FormRecord](d, cfFormByKey, "FORMS"),
		versionByID:     db.NewColumnFamily[int64](d, cfFormVersionByID, "FORM_BY_ID_AND_VERSION"),
		latestByID:      db.NewColumnFamily[int32](d, cfFormLatestByID, "FORM_LATEST_VERSION"),
		nextVersion:     db.NewColumnFamily[int32](d, cfFormNextVersion, "FORM_NEXT_VERSION"),
		byDeploymentKey: db.NewColumnFamily[int64](d, cfFormByDeploymentKey, "FORM_KEY_BY_FORM_ID_AND_DEPLOYMENT_KEY"),
		byVersionTag:    db.NewColumnFamily[int64](d, cfFormByVersionTag, "FORM_KEY_BY_FORM_ID_AND_VERSION_TAG"),
	}
}

func formIDKey(formID, tenantID string) db.Key {
	return db.NewKey().Text(tenantOrDefault(tenantID)).Text(formID)
}

func (s *DBFormState) FindByKey(ctx context.Context, formKey int64) (*protocol.FormRecord, bool, error) {
	return s.byKey.Get(ctx, db.NewKey().Int64(formKey))
}

func (s *DBFormState) FindLatestByID(ctx context.Context, formID, tenantID string) (*protocol.FormRecord, bool, error) {
	version, ok, err := s.latestByID.Get(ctx, formIDKey(formID, tenantID))
	if err != nil || !ok {
		return nil, false, err
	}
	return s.FindByIDAndVersion(ctx, formID, version, tenantID)
}

func (s *DBFormState) FindByIDAndVersion(ctx context.Context, formID string, version int32, tenantID string) (*protocol.FormRecord, bool, error) {
	return s.resolve(ctx, s.versionByID, formIDKey(formID, tenantID).Int64(int64(version)))
}

func (s *DBFormState) FindByIDAndDeploymentKey(ctx context.Context, formID string, deploymentKey int64, tenantID string) (*protocol.FormRecord, bool, error) {
	return s.resolve(ctx, s.byDeploymentKey, formIDKey(formID, tenantID).Int64(deploymentKey))
}

func (s *DBFormState) FindByIDAndVersionTag(ctx context.Context, formID, versionTag, tenantID string) (*protocol.FormRecord, bool, error) {
	return s.resolve(ctx, s.byVersionTag, formIDKey(formID, tenantID).Text(versionTag))
}

func (s *DBFormState) resolve(ctx context.Context, index *db.ColumnFamily[int64], key db.Key) (*protocol.FormRecord, bool, error) {
	formKey, ok, err := index.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	form, ok, err := s.FindByKey(ctx, formKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, db.Inconsistent("resolve", index.Name(), fmt.Errorf("form %d: %w", formKey, db.ErrKeyNotFound))
	}
	return form, true, nil
}

func (s *DBFormState) NextVersion(ctx context.Context, formID, tenantID string) (int32, error) {
	next, ok, err := s.nextVersion.Get(ctx, formIDKey(formID, tenantID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	return next, nil
}

// StoreForm writes the form by key and by (id, version) and moves the
// version counter past the form's version. Storing the same form again
// overwrites it.
func (s *DBFormState) StoreForm(ctx context.Context, form *protocol.FormRecord) error {
	idKey := formIDKey(form.FormID, form.TenantID)
	if err := s.byKey.Upsert(ctx, db.NewKey().Int64(form.FormKey), form); err != nil {
		return err
	}
	if err := s.versionByID.Upsert(ctx, idKey.Int64(int64(form.Version)), form.FormKey); err != nil {
		return err
	}

	next, err := s.NextVersion(ctx, form.FormID, form.TenantID)
	if err != nil {
		return err
	}
	if form.Version+1 > next {
		return s.nextVersion.Upsert(ctx, idKey, form.Version+1)
	}
	return nil
}

// UpdateLatestVersion points the id at form if form is newer than the
// current latest.
func (s *DBFormState) UpdateLatestVersion(ctx context.Context, form *protocol.FormRecord) error {
	idKey := formIDKey(form.FormID, form.TenantID)
	latest, ok, err := s.latestByID.Get(ctx, idKey)
	if err != nil {
		return err
	}
	if ok && latest >= form.Version {
		return nil
	}
	return s.latestByID.Upsert(ctx, idKey, form.Version)
}

func (s *DBFormState) StoreDeploymentKeyIndex(ctx context.Context, form *protocol.FormRecord) error {
	key := formIDKey(form.FormID, form.TenantID).Int64(form.DeploymentKey)
	return s.byDeploymentKey.Upsert(ctx, key, form.FormKey)
}

// StoreVersionTagIndex points the form's version tag at it. A later form
// with the same tag takes the tag over.
func (s *DBFormState) StoreVersionTagIndex(ctx context.Context, form *protocol.FormRecord) error {
	if form.VersionTag == "" {
		return nil
	}
	key := formIDKey(form.FormID, form.TenantID).Text(form.VersionTag)
	return s.byVersionTag.Upsert(ctx, key, form.FormKey)
}

// DeleteForm removes the form from every index. If it was the latest
// version, the highest remaining version becomes latest. The version
// counter is left alone so deleted version numbers are never reused.
func (s *DBFormState) DeleteForm(ctx context.Context, formKey int64) error {
	key := db.NewKey().Int64(formKey)
	form, ok, err := s.byKey.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: key, Op: "delete", Err: db.ErrKeyNotFound}
	}

	idKey := formIDKey(form.FormID, form.TenantID)
	if err := s.byKey.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.versionByID.DeleteIfExists(ctx, idKey.Int64(int64(form.Version))); err != nil {
		return err
	}
	if err := s.deleteIndexEntry(ctx, s.byDeploymentKey, idKey.Int64(form.DeploymentKey), formKey); err != nil {
		return err
	}
	if form.VersionTag != "" {
		if err := s.deleteIndexEntry(ctx, s.byVersionTag, idKey.Text(form.VersionTag), formKey); err != nil {
			return err
		}
	}

	latest, ok, err := s.latestByID.Get(ctx, idKey)
	if err != nil {
		return err
	}
	if !ok || latest != form.Version {
		return nil
	}
	return s.recomputeLatest(ctx, idKey)
}

// deleteIndexEntry removes key only if it still points at formKey; another
// version may have taken the slot over since.
func (s *DBFormState) deleteIndexEntry(ctx context.Context, index *db.ColumnFamily[int64], key db.Key, formKey int64) error {
	current, ok, err := index.Get(ctx, key)
	if err != nil || !ok || current != formKey {
		return err
	}
	return index.Delete(ctx, key)
}

func (s *DBFormState) recomputeLatest(ctx context.Context, idKey db.Key) error {
	versions, err := s.versionByID.Scan(ctx, idKey)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return s.latestByID.DeleteIfExists(ctx, idKey)
	}

	r := db.ReadKey(versions[len(versions)-1].Key)
	if err := r.Skip(idKey); err != nil {
		return err
	}
	highest, err := r.Int64()
	if err != nil {
		return err
	}
	return s.latestByID.Upsert(ctx, idKey, int32(highest))
}

func tenantOrDefault(tenantID string) string {
	if tenantID == "" {
		return protocol.DefaultTenantID
	}
	return tenantID
}
