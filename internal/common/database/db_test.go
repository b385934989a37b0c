package database

import "testing"

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "ローカルはSSL無効",
			cfg:  Config{Host: "localhost", Port: 5432, UserName: "app", Password: "pw", DBName: "calendar"},
			want: "host=localhost port=5432 user=app password=pw dbname=calendar sslmode=disable",
		},
		{
			name: "リモートはSSL必須",
			cfg:  Config{Host: "db.internal", Port: 5432, UserName: "app", Password: "pw", DBName: "calendar"},
			want: "host=db.internal port=5432 user=app password=pw dbname=calendar sslmode=require",
		},
		{
			name: "明示指定が優先",
			cfg:  Config{Host: "127.0.0.1", Port: 15432, UserName: "app", Password: "pw", DBName: "calendar", SSLMode: "verify-full"},
			want: "host=127.0.0.1 port=15432 user=app password=pw dbname=calendar sslmode=verify-full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
