package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const studentColumns = `id, matric, name, level, department, house_id, role, password_hash,
	assignment_complete, assigned_at, registered_at`

func (q *Queries) CreateStudent(ctx context.Context, student *models.Student) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO students (
			matric, name, level, department, house_id, role, password_hash,
			assignment_complete, assigned_at, registered_at
		)
		VALUES (
			:matric, :name, :level, :department, :house_id, :role, :password_hash,
			:assignment_complete, :assigned_at, :registered_at
		)
		RETURNING id
	`, student)
	if err != nil {
		return q.wrapUnique(err, "failed to create student", models.ErrDuplicateMatric)
	}
	student.ID = id
	return nil
}

func (q *Queries) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	return q.getStudent(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
}

func (q *Queries) GetStudentByMatric(ctx context.Context, matric string) (*models.Student, error) {
	return q.getStudent(ctx, `SELECT `+studentColumns+` FROM students WHERE matric = ?`, models.NormalizeMatric(matric))
}

func (q *Queries) getStudent(ctx context.Context, query string, args ...interface{}) (*models.Student, error) {
	var student models.Student
	err := q.get(ctx, &student, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get student")
	}
	return &student, nil
}

// FindAssignedStudents matches name and department case-insensitively, lowest id first.
func (q *Queries) FindAssignedStudents(ctx context.Context, name, level, department string) ([]models.Student, error) {
	var students []models.Student
	err := q.selectAll(ctx, &students, `
		SELECT `+studentColumns+`
		FROM students
		WHERE LOWER(name) = LOWER(?)
		AND level = ?
		AND LOWER(department) = LOWER(?)
		AND assignment_complete = ?
		ORDER BY id ASC
	`, name, level, department, true)
	if err != nil {
		return nil, q.wrap(err, "failed to find students")
	}
	return students, nil
}

func (q *Queries) ListStudents(ctx context.Context, role models.Role) ([]models.Student, error) {
	var students []models.Student
	err := q.selectAll(ctx, &students, `
		SELECT `+studentColumns+` FROM students WHERE role = ? ORDER BY id ASC
	`, role)
	if err != nil {
		return nil, q.wrap(err, "failed to list students")
	}
	return students, nil
}

func (q *Queries) ListHouseMembers(ctx context.Context, houseID int64) ([]models.Student, error) {
	var students []models.Student
	err := q.selectAll(ctx, &students, `
		SELECT `+studentColumns+` FROM students WHERE house_id = ? ORDER BY name ASC
	`, houseID)
	if err != nil {
		return nil, q.wrap(err, "failed to list house members")
	}
	return students, nil
}

// CompleteAssignment sets the house only if the student is still unassigned.
// It reports false when another writer completed the assignment first.
func (q *Queries) CompleteAssignment(ctx context.Context, studentID, houseID, at int64) (bool, error) {
	n, err := q.exec(ctx, `
		UPDATE students
		SET house_id = ?, assignment_complete = ?, assigned_at = ?
		WHERE id = ? AND assignment_complete = ?
	`, houseID, true, at, studentID, false)
	if err != nil {
		return false, q.wrap(err, "failed to complete assignment")
	}
	return n == 1, nil
}
