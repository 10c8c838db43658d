package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{}, &Category{}, &Tag{}, &Blog{}, &BlogComment{},
		&BlogView{}, &DailyAnalytics{}, &MonthlyAnalytics{}, &ContactSubmission{},
	}
}
