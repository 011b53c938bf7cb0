package kay

import (
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/zap"
)

func mkaMI(key string, mi mka.MI) zap.Field { return logger.Hex(key, mi[:]) }

func mkaMN(mn uint32) zap.Field { return logger.Uint32("mn", mn) }

func mkaSCI(key string, sci mka.SCI) zap.Field { return logger.Stringer(key, sci) }

func mkaKI(key string, ki mka.KeyIdentifier) zap.Field { return logger.Stringer(key, ki) }

func logErr(err error) zap.Field { return logger.Err(err) }
