package service

import "time"

// SetOrderClock подменяет часы сервиса заказов, чтобы тесты могли выйти за окно идемпотентности
func SetOrderClock(svc OrderService, now func() time.Time) {
	svc.(*orderService).now = now
}

func SetAdminClock(svc AdminService, now func() time.Time) {
	svc.(*adminService).now = now
}
