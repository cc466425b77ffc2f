package evernote

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// fieldWriter writes one argument field of a call.
type fieldWriter func(ctx context.Context, p thrift.TProtocol) error

// exception is a declared EDAM exception that can appear in a result struct.
type exception interface {
	error
	read(ctx context.Context, p thrift.TProtocol) error
}

// reply describes the "<method>_result" struct of a call: field 0 carries the
// return value, the remaining ids carry declared exceptions.
type reply struct {
	successType thrift.TType
	success     func(ctx context.Context, p thrift.TProtocol) error
	exceptions  map[int16]func() exception
}

// readStruct iterates the fields of a struct, skipping those field does not handle.
func readStruct(ctx context.Context, p thrift.TProtocol, field func(id int16, typ thrift.TType) (bool, error)) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typ, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typ == thrift.STOP {
			break
		}

		handled, err := field(id, typ)
		if err != nil {
			return err
		}
		if !handled {
			if err := p.Skip(ctx, typ); err != nil {
				return err
			}
		}

		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

func writeStringField(ctx context.Context, p thrift.TProtocol, name string, id int16, value string) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.STRING, id); err != nil {
		return err
	}
	if err := p.WriteString(ctx, value); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeStructField(ctx context.Context, p thrift.TProtocol, name string, id int16, write func(context.Context, thrift.TProtocol) error) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.STRUCT, id); err != nil {
		return err
	}
	if err := write(ctx, p); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

// authTokenArg is the first argument of every authenticated EDAM call.
func authTokenArg(token string) fieldWriter {
	return func(ctx context.Context, p thrift.TProtocol) error {
		return writeStringField(ctx, p, "authenticationToken", 1, token)
	}
}

// writeCall encodes a CALL message with the given argument fields.
func writeCall(ctx context.Context, p thrift.TProtocol, method string, seqID int32, args ...fieldWriter) error {
	if err := p.WriteMessageBegin(ctx, method, thrift.CALL, seqID); err != nil {
		return err
	}
	if err := p.WriteStructBegin(ctx, method+"_args"); err != nil {
		return err
	}
	for _, arg := range args {
		if err := arg(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	if err := p.WriteStructEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteMessageEnd(ctx); err != nil {
		return err
	}
	return p.Flush(ctx)
}

// readReply decodes the response message for method and returns the declared
// exception, if the service raised one.
func readReply(ctx context.Context, p thrift.TProtocol, method string, seqID int32, r reply) error {
	name, mtype, rseq, err := p.ReadMessageBegin(ctx)
	if err != nil {
		return err
	}

	if mtype == thrift.EXCEPTION {
		appErr := thrift.NewTApplicationException(thrift.UNKNOWN_APPLICATION_EXCEPTION, "")
		if err := appErr.Read(ctx, p); err != nil {
			return err
		}
		if err := p.ReadMessageEnd(ctx); err != nil {
			return err
		}
		return appErr
	}
	if mtype != thrift.REPLY {
		return fmt.Errorf("%s: unexpected message type %d", method, mtype)
	}
	if name != method {
		return fmt.Errorf("%s: wrong method name in reply: %s", method, name)
	}
	if rseq != seqID {
		return fmt.Errorf("%s: out of sequence reply: got %d, want %d", method, rseq, seqID)
	}

	var (
		raised   exception
		received bool
	)
	err = readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		if id == 0 && typ == r.successType && r.success != nil {
			received = true
			return true, r.success(ctx, p)
		}
		newException, ok := r.exceptions[id]
		if !ok || typ != thrift.STRUCT {
			return false, nil
		}
		raised = newException()
		return true, raised.read(ctx, p)
	})
	if err != nil {
		return err
	}
	if err := p.ReadMessageEnd(ctx); err != nil {
		return err
	}

	if raised != nil {
		return raised
	}
	if r.success != nil && !received {
		return fmt.Errorf("%s failed: unknown result", method)
	}
	return nil
}

// userAndSystemExceptions are declared by every call used here as fields 1 and 2.
func userAndSystemExceptions() map[int16]func() exception {
	return map[int16]func() exception{
		1: func() exception { return &UserException{} },
		2: func() exception { return &SystemException{} },
	}
}
