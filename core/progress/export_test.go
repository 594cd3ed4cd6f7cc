package progress

import "time"

func SetNowFunc(svc *Service, now func() time.Time) { svc.nowFunc = now }
