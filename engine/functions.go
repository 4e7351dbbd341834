package engine

import (
	"database/sql/driver"
	"fmt"

	sqlite "modernc.org/sqlite"

	"github.com/viant/mediasnap/mediaid"
)

// RegisterMediaFunctions registers media_name and media_id with the driver
// so they are available on new connections opened after this call.
// Existing open connections will not see the functions.
//
//	media_name(plaintext_hash, remote_key, is_thumbnail) -> TEXT
//	media_id(backup_key, plaintext_hash, remote_key, is_thumbnail) -> TEXT
func RegisterMediaFunctions() {
	// The driver rejects duplicates; repeated registration is harmless.
	_ = sqlite.RegisterDeterministicScalarFunction("media_name", 3, mediaNameImpl)
	_ = sqlite.RegisterDeterministicScalarFunction("media_id", 4, mediaIDImpl)
}

func asBlob(fn string, arg driver.Value) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T; want BLOB", fn, arg)
	}
}

func asBool(fn string, arg driver.Value) (bool, error) {
	switch v := arg.(type) {
	case nil:
		return false, nil
	case int64:
		return v != 0, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("%s: unsupported argument type %T; want INTEGER", fn, arg)
	}
}

func mediaNameImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("media_name: expected 3 arguments, got %d", len(args))
	}
	hash, err := asBlob("media_name", args[0])
	if err != nil {
		return nil, err
	}
	key, err := asBlob("media_name", args[1])
	if err != nil {
		return nil, err
	}
	thumb, err := asBool("media_name", args[2])
	if err != nil {
		return nil, err
	}
	if hash == nil || key == nil {
		return nil, nil
	}
	return mediaid.MediaName(hash, key, thumb)
}

func mediaIDImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("media_id: expected 4 arguments, got %d", len(args))
	}
	backupKey, err := asBlob("media_id", args[0])
	if err != nil {
		return nil, err
	}
	hash, err := asBlob("media_id", args[1])
	if err != nil {
		return nil, err
	}
	key, err := asBlob("media_id", args[2])
	if err != nil {
		return nil, err
	}
	thumb, err := asBool("media_id", args[3])
	if err != nil {
		return nil, err
	}
	if backupKey == nil || hash == nil || key == nil {
		return nil, nil
	}
	d, err := mediaid.NewDeriver(backupKey)
	if err != nil {
		return nil, err
	}
	return d.MediaID(hash, key, thumb)
}
