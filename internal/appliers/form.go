package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type formCreatedApplier struct {
	forms state.MutableFormState
}

func (a *formCreatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	form, err := recordAs[*protocol.FormRecord](value)
	if err != nil {
		return err
	}
	if err := a.forms.StoreForm(ctx, form); err != nil {
		return err
	}
	return a.forms.UpdateLatestVersion(ctx, form)
}

// formCreatedV2Applier also indexes the form by deployment key and
// version tag.
type formCreatedV2Applier struct {
	forms state.MutableFormState
}

func (a *formCreatedV2Applier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	form, err := recordAs[*protocol.FormRecord](value)
	if err != nil {
		return err
	}
	if err := a.forms.StoreForm(ctx, form); err != nil {
		return err
	}
	if err := a.forms.UpdateLatestVersion(ctx, form); err != nil {
		return err
	}
	if err := a.forms.StoreDeploymentKeyIndex(ctx, form); err != nil {
		return err
	}
	return a.forms.StoreVersionTagIndex(ctx, form)
}

type formDeletedApplier struct {
	forms state.MutableFormState
}

func (a *formDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	form, err := recordAs[*protocol.FormRecord](value)
	if err != nil {
		return err
	}
	return a.forms.DeleteForm(ctx, form.FormKey)
}
