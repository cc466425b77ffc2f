package evernote

import (
	"context"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
)

// Notebook is the subset of the EDAM Notebook struct this tool reads and writes.
type Notebook struct {
	GUID              string
	Name              string
	Stack             string
	UpdateSequenceNum int32
	DefaultNotebook   bool
}

// User is the subset of the EDAM User struct used to identify the account.
type User struct {
	ID       int32
	Username string
	Email    string
}

// SyncState is the account-wide synchronization state.
type SyncState struct {
	CurrentTime    time.Time
	FullSyncBefore time.Time
	UpdateCount    int32
}

// EDAM field ids
const (
	notebookFieldGUID            int16 = 1
	notebookFieldName            int16 = 2
	notebookFieldUSN             int16 = 5
	notebookFieldDefaultNotebook int16 = 6
	notebookFieldStack           int16 = 12

	userFieldID       int16 = 1
	userFieldUsername int16 = 2
	userFieldEmail    int16 = 3

	syncStateFieldCurrentTime    int16 = 1
	syncStateFieldFullSyncBefore int16 = 2
	syncStateFieldUpdateCount    int16 = 3
)

func (n *Notebook) write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Notebook"); err != nil {
		return err
	}
	if n.GUID != "" {
		if err := writeStringField(ctx, p, "guid", notebookFieldGUID, n.GUID); err != nil {
			return err
		}
	}
	if n.Name != "" {
		if err := writeStringField(ctx, p, "name", notebookFieldName, n.Name); err != nil {
			return err
		}
	}
	// An absent stack removes the notebook from its stack on update
	if n.Stack != "" {
		if err := writeStringField(ctx, p, "stack", notebookFieldStack, n.Stack); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func (n *Notebook) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		var err error
		switch {
		case id == notebookFieldGUID && typ == thrift.STRING:
			n.GUID, err = p.ReadString(ctx)
		case id == notebookFieldName && typ == thrift.STRING:
			n.Name, err = p.ReadString(ctx)
		case id == notebookFieldStack && typ == thrift.STRING:
			n.Stack, err = p.ReadString(ctx)
		case id == notebookFieldUSN && typ == thrift.I32:
			n.UpdateSequenceNum, err = p.ReadI32(ctx)
		case id == notebookFieldDefaultNotebook && typ == thrift.BOOL:
			n.DefaultNotebook, err = p.ReadBool(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

func (u *User) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		var err error
		switch {
		case id == userFieldID && typ == thrift.I32:
			u.ID, err = p.ReadI32(ctx)
		case id == userFieldUsername && typ == thrift.STRING:
			u.Username, err = p.ReadString(ctx)
		case id == userFieldEmail && typ == thrift.STRING:
			u.Email, err = p.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

func (s *SyncState) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		switch {
		case id == syncStateFieldCurrentTime && typ == thrift.I64:
			ms, err := p.ReadI64(ctx)
			s.CurrentTime = time.UnixMilli(ms)
			return true, err
		case id == syncStateFieldFullSyncBefore && typ == thrift.I64:
			ms, err := p.ReadI64(ctx)
			s.FullSyncBefore = time.UnixMilli(ms)
			return true, err
		case id == syncStateFieldUpdateCount && typ == thrift.I32:
			var err error
			s.UpdateCount, err = p.ReadI32(ctx)
			return true, err
		default:
			return false, nil
		}
	})
}
