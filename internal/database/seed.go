package database

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/auth"
)

// seedProject - одна строка каталога проектов по умолчанию.
type seedProject struct {
	date, name, description, category, image string
}

// defaultProjects - фиксированный каталог, которым наполняется витрина.
// Владельцем всех строк становится административный аккаунт.
var defaultProjects = []seedProject{
	{"2024-11-07", "Projet IoT Innovant", "Découvrez comment ce projet IoT peut transformer votre quotidien.", "tech", "images/projet-iot-exemple.jpg"},
	{"2024-11-06", "Atelier de Bricolage", "Un projet de bricolage pour embellir votre espace de vie.", "craft", "images/atelier-bricolage.jpg"},
	{"2024-11-03", "Création d'un Jardin Vertical", "Fabriquez un jardin vertical pour votre balcon ou intérieur.", "garden", "images/jardin-vertical.jpg"},
	{"2024-11-01", "Fabriquer sa Propre Table en Bois", "Construisez une table en bois personnalisée pour votre maison.", "woodwork", "images/table-bois.jpg"},
	{"2024-10-29", "Réaliser des Bougies Maison", "Apprenez à créer des bougies naturelles avec vos propres parfums.", "craft", "images/bougies-maison.jpg"},
	{"2024-10-26", "Robot Suiveur de Ligne", "Assemblez un petit robot qui suit une ligne tracée au sol.", "tech", "images/robot-ligne.jpg"},
	{"2024-10-23", "Peinture sur Tissu", "Personnalisez vos vêtements avec des motifs peints à la main.", "art", "images/peinture-tissu.jpg"},
	{"2024-10-15", "Lampe en Bouteille Recyclée", "Transformez une bouteille en une lampe élégante.", "recycle", "images/lampe-bouteille.jpg"},
	{"2024-10-11", "Étagère Murale DIY", "Créez une étagère murale design avec des matériaux simples.", "woodwork", "images/etagere-murale.jpg"},
	{"2024-10-08", "Fabriquer un Cerf-Volant", "Construisez un cerf-volant pour profiter des journées venteuses.", "craft", "images/cerf-volant.jpg"},
	{"2024-10-04", "Enceinte Bluetooth Maison", "Assemblez votre propre enceinte Bluetooth portable.", "tech", "images/enceinte-bluetooth.jpg"},
	{"2024-10-01", "Pots de Fleurs Peints", "Donnez de la couleur à vos plantes avec des pots personnalisés.", "art", "images/pots-fleurs-peints.jpg"},
	{"2024-09-28", "Horloge Murale en Vinyle", "Recyclez de vieux disques vinyles en horloges murales.", "recycle", "images/horloge-vinyle.jpg"},
	{"2024-09-25", "Fabriquer du Savon Naturel", "Créez vos propres savons avec des ingrédients naturels.", "craft", "images/savon-naturel.jpg"},
	{"2024-09-21", "Station Météo Connectée", "Construisez une station météo avec un microcontrôleur.", "tech", "images/station-meteo.jpg"},
	{"2024-09-17", "Décoration en Macramé", "Apprenez l'art du macramé pour décorer votre intérieur.", "craft", "images/macrame.jpg"},
	{"2024-09-14", "Composteur de Jardin", "Fabriquez un composteur pour recycler vos déchets organiques.", "garden", "images/composteur.jpg"},
	{"2024-09-11", "Cadre Photo en Bois Recyclé", "Créez des cadres photo uniques avec du bois récupéré.", "recycle", "images/cadre-photo.jpg"},
	{"2024-09-08", "Coussins Personnalisés", "Cousez des coussins avec des motifs et tissus de votre choix.", "craft", "images/coussins.jpg"},
	{"2024-09-03", "Système d'Arrosage Automatique", "Installez un système pour arroser vos plantes automatiquement.", "tech", "images/arrosage-automatique.jpg"},
}

// EnsureAdmin гарантирует существование административного аккаунта.
// Если пользователь с таким именем уже есть, возвращает его ID;
// иначе создает аккаунт с новой солью и хешем пароля.
func (s *Store) EnsureAdmin(username, password, email string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err == nil {
		logrus.WithField("username", username).Info("Административный аккаунт уже существует")
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("ошибка проверки административного аккаунта: %w", err)
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO users (username, email, password, salt) VALUES (?, ?, ?, ?)`,
		username, email, auth.HashPassword(password, salt), salt,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания административного аккаунта: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{"username": username, "id": id}).Info("Административный аккаунт создан")
	return id, nil
}

// SeedProjects наполняет каталог проектами по умолчанию от имени ownerID.
// Сначала удаляются дубликаты по тройке (name, date, image) - остатки баз,
// живших до появления ограничения уникальности, - затем каталог вставляется
// upsert-ом: при конфликте обновляются описание, категория и владелец.
// Повторный запуск ничего не дублирует.
func (s *Store) SeedProjects(ownerID int64) error {
	_, err := s.db.Exec(`
		DELETE FROM projects
		WHERE rowid NOT IN (
			SELECT MIN(rowid) FROM projects GROUP BY name, date, image
		)`)
	if err != nil {
		return fmt.Errorf("ошибка удаления дубликатов проектов: %w", err)
	}

	stmt, err := s.db.Prepare(`
		INSERT INTO projects (date, name, description, category, image, userId)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, date, image) DO UPDATE SET
			description = excluded.description,
			category = excluded.category,
			userId = excluded.userId`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса вставки каталога: %w", err)
	}
	defer stmt.Close()

	for _, p := range defaultProjects {
		if _, err := stmt.Exec(p.date, p.name, p.description, p.category, p.image, ownerID); err != nil {
			return fmt.Errorf("ошибка вставки проекта %q: %w", p.name, err)
		}
	}

	logrus.WithField("count", len(defaultProjects)).Info("Каталог проектов по умолчанию проверен/обновлен")
	return nil
}
