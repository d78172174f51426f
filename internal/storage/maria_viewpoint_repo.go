package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/voxel-engine/internal/export"
)

// MariaViewpointRepo реализует ViewpointRepo для базы данных MariaDB/MySQL.
// Использует таблицу camera_viewpoints.
type MariaViewpointRepo struct {
	db *sql.DB
}

// NewMariaViewpointRepo создает новый репозиторий точек обзора для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaViewpointRepo(ctx context.Context, dsn string) (*MariaViewpointRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaViewpointRepo{db: db}

	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

func (r *MariaViewpointRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS camera_viewpoints (
			name       VARCHAR(64) PRIMARY KEY,
			pos_x      FLOAT       NOT NULL,
			pos_y      FLOAT       NOT NULL,
			pos_z      FLOAT       NOT NULL,
			fwd_x      FLOAT       NOT NULL,
			fwd_y      FLOAT       NOT NULL,
			fwd_z      FLOAT       NOT NULL,
			right_x    FLOAT       NOT NULL,
			right_y    FLOAT       NOT NULL,
			right_z    FLOAT       NOT NULL,
			up_x       FLOAT       NOT NULL,
			up_y       FLOAT       NOT NULL,
			up_z       FLOAT       NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы camera_viewpoints: %w", err)
	}
	return nil
}

// Save сохраняет точку обзора.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (r *MariaViewpointRepo) Save(ctx context.Context, vp Viewpoint) error {
	if err := validateName(vp.Name); err != nil {
		return err
	}

	query := `
		INSERT INTO camera_viewpoints
			(name, pos_x, pos_y, pos_z, fwd_x, fwd_y, fwd_z, right_x, right_y, right_z, up_x, up_y, up_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			pos_x = VALUES(pos_x), pos_y = VALUES(pos_y), pos_z = VALUES(pos_z),
			fwd_x = VALUES(fwd_x), fwd_y = VALUES(fwd_y), fwd_z = VALUES(fwd_z),
			right_x = VALUES(right_x), right_y = VALUES(right_y), right_z = VALUES(right_z),
			up_x = VALUES(up_x), up_y = VALUES(up_y), up_z = VALUES(up_z),
			updated_at = CURRENT_TIMESTAMP
	`

	c := vp.Camera
	_, err := r.db.ExecContext(ctx, query, vp.Name,
		c.Position[0], c.Position[1], c.Position[2],
		c.Forward[0], c.Forward[1], c.Forward[2],
		c.Right[0], c.Right[1], c.Right[2],
		c.Up[0], c.Up[1], c.Up[2],
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения точки обзора %q: %w", vp.Name, err)
	}
	return nil
}

const selectViewpoint = `
	SELECT name, pos_x, pos_y, pos_z, fwd_x, fwd_y, fwd_z,
	       right_x, right_y, right_z, up_x, up_y, up_z, updated_at
	FROM camera_viewpoints`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanViewpoint(row rowScanner) (Viewpoint, error) {
	var (
		vp        Viewpoint
		p, f, r   mgl32.Vec3
		u         mgl32.Vec3
		updatedAt time.Time
	)
	err := row.Scan(&vp.Name,
		&p[0], &p[1], &p[2],
		&f[0], &f[1], &f[2],
		&r[0], &r[1], &r[2],
		&u[0], &u[1], &u[2],
		&updatedAt,
	)
	if err != nil {
		return Viewpoint{}, err
	}
	vp.Camera = export.CameraPose{Position: p, Forward: f, Right: r, Up: u}
	vp.UpdatedAt = updatedAt
	return vp, nil
}

// Load загружает точку обзора из базы данных.
func (r *MariaViewpointRepo) Load(ctx context.Context, name string) (Viewpoint, bool, error) {
	if err := validateName(name); err != nil {
		return Viewpoint{}, false, err
	}

	vp, err := scanViewpoint(r.db.QueryRowContext(ctx, selectViewpoint+` WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return Viewpoint{}, false, nil
	}
	if err != nil {
		return Viewpoint{}, false, fmt.Errorf("ошибка загрузки точки обзора %q: %w", name, err)
	}
	return vp, true, nil
}

// Delete удаляет точку обзора.
func (r *MariaViewpointRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM camera_viewpoints WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления точки обзора %q: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%q: %w", name, ErrViewpointNotFound)
	}
	return nil
}

// List возвращает все точки обзора.
func (r *MariaViewpointRepo) List(ctx context.Context) ([]Viewpoint, error) {
	rows, err := r.db.QueryContext(ctx, selectViewpoint+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения точек обзора: %w", err)
	}
	defer rows.Close()

	list := []Viewpoint{}
	for rows.Next() {
		vp, err := scanViewpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения точки обзора: %w", err)
		}
		list = append(list, vp)
	}
	return list, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaViewpointRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
